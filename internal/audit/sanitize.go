package audit

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// 请求体快照中需要剔除的字段
var sensitiveKeys = map[string]struct{}{
	"password":        {},
	"newPassword":     {},
	"currentPassword": {},
	"confirmPassword": {},
}

// Sanitize 返回剔除密码字段后的副本，嵌套对象同样处理
func Sanitize(details map[string]interface{}) map[string]interface{} {
	if details == nil {
		return nil
	}
	return sanitizeMap(details)
}

func sanitizeMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if _, sensitive := sensitiveKeys[k]; sensitive {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return sanitizeMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = sanitizeValue(val[i])
		}
		return out
	default:
		return v
	}
}

func encodeDetails(details map[string]interface{}) (datatypes.JSON, error) {
	if details == nil {
		return datatypes.JSON("{}"), nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
