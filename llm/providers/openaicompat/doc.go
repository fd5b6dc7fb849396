/*
包 openaicompat 提供 OpenAI 兼容协议的 llm.Provider 实现。

DemoForge 的文档分析与演示生成端点均走 /v1/chat/completions 协议，
本包是二者共用的唯一 HTTP 适配实现；差异仅在于各自的 BaseURL、
APIKey 与默认模型，由 [Config] 注入。

健康检查通过 GET /v1/models 探活，HTTP 客户端统一由
internal/tlsutil 创建以强制 TLS 1.2+。
*/
package openaicompat
