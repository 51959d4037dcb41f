package articulation

// findArrayCandidate returns the first top-level [...] span in s, or "" when
// none closes. Brackets inside single- or double-quoted strings are ignored.
//
// Iterating bytes is safe for the ASCII delimiters ([, ], ', ", \) because
// UTF-8 never uses ASCII bytes inside a multi-byte sequence.
func findArrayCandidate(s string) string {
	var depth int
	start := -1
	var quote byte
	var escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if quote != 0 {
			if b == '\\' {
				escape = true
			} else if b == quote {
				quote = 0
			}
			continue
		}

		switch b {
		case '"', '\'':
			if depth > 0 {
				quote = b
			}
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1]
				}
			}
		}
	}

	return ""
}
