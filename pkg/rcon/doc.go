/*
Package rcon 实现了Minecraft服务器使用的Source RCON协议客户端。

主要特性:

  - 二进制协议编解码：小端序分帧、载荷终止符、长度校验
  - 会话管理：连接、认证、命令往返、请求ID序列
  - Keep Alive处理：识别服务器主动发送的保活包并向后多读一个响应
  - 错误分类：将底层网络错误归类，供上层重试策略判断

基本用法:

	client := rcon.NewClient("127.0.0.1", 25575, "minecraft")
	if err := client.Connect(); err != nil {
		// 处理连接或认证错误
	}
	defer client.Disconnect()

	response, err := client.Command("list")
	if err != nil {
		if rcon.IsRetryable(err) {
			// 可以重连后重试
		}
	}
*/
package rcon
