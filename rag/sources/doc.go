// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package sources 提供外部知识源适配器。目前只有 Wikipedia：
下载单个词条页面，提取标题与正文段落，供分块与向量化。

# 核心类型

  - WikipediaScraper — 带浏览器 User-Agent、超时与指数退避重试的抓取器
  - WikiPage — 抓取结果（标题、正文、是否包含 infobox）
  - ParseWikipediaHTML — 基于 golang.org/x/net/html 的纯解析函数，可脱离网络测试

# 清洗规则

  - 只取 div.mw-parser-output 下的 <p> 段落，按文档顺序
  - 去掉 [n] 引用标记，连续空白压缩为单个空格
  - 清洗后长度不超过 20 个字符的段落丢弃
  - 段落之间以空行（"\n\n"）连接
*/
package sources
