package tokenizer

// TruncateToBudget 将文本裁剪到不超过 budget 个 token。
// 对支持 Encode/Decode 的分词器按 token 边界精确裁剪；
// 估算器等不支持解码的实现退化为按比例的字符裁剪。
func TruncateToBudget(t Tokenizer, text string, budget int) string {
	if budget <= 0 {
		return ""
	}

	count, err := t.CountTokens(text)
	if err != nil || count <= budget {
		return text
	}

	tokens, err := t.Encode(text)
	if err == nil && len(tokens) > budget {
		if decoded, derr := t.Decode(tokens[:budget]); derr == nil {
			return decoded
		}
	}

	// 按 token 比例折算到字符数，rune 切片保证不会截断多字节字符
	runes := []rune(text)
	keep := len(runes) * budget / count
	if keep >= len(runes) {
		keep = len(runes) - 1
	}
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep])
}
