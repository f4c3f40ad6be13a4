// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 WikiChat 的 HTTP 监听：API 端口与 metrics 端口各一个 Manager。

Manager 的状态只会按 idle → serving → closed 前进。Start 非阻塞，
Shutdown 幂等，WaitForShutdown 在收到 SIGINT/SIGTERM、ctx 取消或
Serve 异常退出后执行优雅关闭。监听参数由 ConfigFromServer 从
server 配置段派生。
*/
package server
