package groupcache

import (
	"encoding/json"
	"fmt"

	"github.com/c360/pointmap/errors"
	"github.com/c360/pointmap/types"
)

// repairedInstanceKey is the instance slot used when a persisted entry
// stored a bare point list where the nested instance map belongs.
const repairedInstanceKey = "1"

// DecodeGrouping deserializes a persisted grouping into the canonical
// nested shape device_type -> device_instance -> ordered point names.
// Known deviations are repaired deterministically:
//   - a bare list of point names becomes {"1": [...]}
//   - a single point name string becomes {"1": [name]}
//
// Anything else is rejected with ErrCacheCorrupted so the caller rebuilds
// the entry instead of trusting it.
func DecodeGrouping(data []byte) (types.Grouping, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(errors.ErrCacheCorrupted, "groupcache", "DecodeGrouping", "unmarshal")
	}
	return RepairGrouping(raw)
}

// RepairGrouping validates a loosely-typed grouping and repairs it into the
// canonical nested shape without data loss.
func RepairGrouping(raw map[string]any) (types.Grouping, error) {
	grouping := make(types.Grouping, len(raw))

	for deviceType, value := range raw {
		switch v := value.(type) {
		case map[string]any:
			instances := make(map[string][]string, len(v))
			for instance, pointsVal := range v {
				names, err := toNameList(pointsVal)
				if err != nil {
					return nil, errors.WrapInvalid(
						fmt.Errorf("%w: device %s instance %s", errors.ErrCacheCorrupted, deviceType, instance),
						"groupcache", "RepairGrouping", "instance shape")
				}
				instances[instance] = names
			}
			grouping[deviceType] = instances
		case []any:
			// List where nested dict belongs: repair, keep every name
			names, err := toNameList(v)
			if err != nil {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: device %s", errors.ErrCacheCorrupted, deviceType),
					"groupcache", "RepairGrouping", "list shape")
			}
			grouping[deviceType] = map[string][]string{repairedInstanceKey: names}
		case string:
			grouping[deviceType] = map[string][]string{repairedInstanceKey: {v}}
		default:
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: device %s has unrepairable shape %T", errors.ErrCacheCorrupted, deviceType, value),
				"groupcache", "RepairGrouping", "device shape")
		}
	}

	return grouping, nil
}

func toNameList(value any) ([]string, error) {
	switch v := value.(type) {
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string point name %T", item)
			}
			names = append(names, s)
		}
		return names, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("unexpected point list shape %T", value)
	}
}

// EncodeGrouping serializes a grouping in the canonical nested shape.
func EncodeGrouping(g types.Grouping) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, errors.WrapInvalid(err, "groupcache", "EncodeGrouping", "marshal")
	}
	return data, nil
}
