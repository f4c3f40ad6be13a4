// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 汇集 WikiChat 各包测试共用的小工具。

  - TestContext: 带超时并自动 Cleanup 的 context
  - DoJSON / WriteFile: HTTP handler 调用与临时配置文件
  - AssertJSONEqual: 按 JSON 形态断言
  - MustJSON / MustParseJSON: JSON 编解码

子包 mocks 提供可编排的 llm.Provider，fixtures 提供样例词条 HTML 与检索文档。

	ctx := testutil.TestContext(t)
	w := testutil.DoJSON(mux, http.MethodPost, "/search/", `{"query":"hi"}`)
*/
package testutil
