package config

import "strings"

// Values under these keys are masked by MaskSecrets and by `config get`.
var secretKeys = map[string]bool{
	"telegram.token":          true,
	"calendar.client_secret":  true,
	"http.auth_password_hash": true,
	"store.dsn":               true,
}

func IsSecretKey(key string) bool { return secretKeys[key] }

// Flatten turns nested objects into dot keys, so {"store": {"driver": "x"}}
// becomes {"store.driver": "x"}. Empty objects vanish.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A non-object value met on the way
// to a deeper key is replaced by an object.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets copies flat, replacing non-empty secret strings with "***"
// and their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if s, ok := v.(string); ok && s != "" && secretKeys[k] {
			out[k] = "***" + s[max(0, len(s)-4):]
		}
	}
	return out
}
