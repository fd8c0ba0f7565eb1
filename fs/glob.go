package fs

import "strings"

// MatchGlob reports whether name matches pattern, where pattern is a
// shell-style glob over "/"-separated segments:
//
//	*   matches any run of non-"/" characters within a segment
//	?   matches exactly one non-"/" character
//	**  matches any run of characters, including "/", across segments
//	[...] matches any one character in the class (supports "-" ranges
//	      and a leading "^" or "!" negation)
//
// A malformed class (unterminated "[") reports ok=false so the caller can
// fail the List call with ErrMalformedGlob.
func MatchGlob(pattern, name string) (matched bool, ok bool) {
	if err := validateGlob(pattern); err != nil {
		return false, false
	}
	return matchGlob(pattern, name), true
}

func validateGlob(pattern string) error {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '[' {
			j := i + 1
			if j < len(pattern) && (pattern[j] == '^' || pattern[j] == '!') {
				j++
			}
			closed := false
			for ; j < len(pattern); j++ {
				if pattern[j] == ']' {
					closed = true
					break
				}
			}
			if !closed {
				return ErrMalformedGlob
			}
			i = j
		}
	}
	return nil
}

// matchGlob implements the matcher by recursive descent, assuming pattern
// already passed validateGlob.
func matchGlob(pattern, name string) bool {
	for {
		if pattern == "" {
			return name == ""
		}
		if strings.HasPrefix(pattern, "**") {
			rest := pattern[2:]
			if rest == "" {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchGlob(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if name == "" {
			return pattern[0] == '*' && matchGlob(pattern[1:], "")
		}
		switch pattern[0] {
		case '*':
			rest := pattern[1:]
			for i := 0; i <= indexOfSlashOrEnd(name); i++ {
				if matchGlob(rest, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if name[0] == '/' {
				return false
			}
			pattern, name = pattern[1:], name[1:]
			continue
		case '[':
			end := strings.IndexByte(pattern, ']')
			class := pattern[1:end]
			if name[0] == '/' {
				return false
			}
			if !matchClass(class, name[0]) {
				return false
			}
			pattern, name = pattern[end+1:], name[1:]
			continue
		default:
			if pattern[0] != name[0] {
				return false
			}
			pattern, name = pattern[1:], name[1:]
			continue
		}
	}
}

func indexOfSlashOrEnd(s string) int {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return i
	}
	return len(s)
}

func matchClass(class string, c byte) bool {
	negate := false
	if len(class) > 0 && (class[0] == '^' || class[0] == '!') {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= c && c <= class[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	return matched != negate
}
