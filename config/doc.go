// Package config 提供 DemoForge 的配置管理功能。
//
// 支持从 YAML 文件和环境变量加载配置，按
// 默认值 → 文件 → 环境变量的优先级合并，
// 并在加载时执行结构化校验。
package config
