package decode

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	sgdive "github.com/seamote/sgdive"
)

// LoadCalibConsts reads a calibration constants file into cc. Two
// formats are recognised: a JSON document, or the classic
// `name = value;` per-line form of the onboard calibration file.
// Keys the schema does not know end up in cc.Extra rather than being
// dropped, for forward compatibility.
func LoadCalibConsts(file_uri string, config_uri string, cc *sgdive.CalibConsts) error {
	data, err := readAll(file_uri, config_uri)
	if err != nil {
		return err
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		fields := calibFieldsByTag(cc)
		for key, v := range raw {
			fval, isNum := v.(float64)
			if _, known := fields[key]; isNum && !known {
				if cc.Extra == nil {
					cc.Extra = make(map[string]float64)
				}
				cc.Extra[key] = fval
			}
		}
		return json.Unmarshal(data, cc)
	}
	parseCalibLines(trimmed, cc)
	return nil
}

// parseCalibLines handles the `name = value;` form. Values are floats,
// integers or quoted strings; strings are currently only informational
// (id, mission title) and are skipped. Comment lines start with %.
func parseCalibLines(text string, cc *sgdive.CalibConsts) {
	fields := calibFieldsByTag(cc)
	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "%"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		if line == "" {
			continue
		}
		split := strings.SplitN(line, "=", 2)
		if len(split) != 2 {
			continue
		}
		key := strings.TrimSpace(split[0])
		val := strings.TrimSpace(split[1])
		if strings.HasPrefix(val, "'") || strings.HasPrefix(val, "\"") {
			continue // informational strings
		}
		fval, err := strconv.ParseFloat(val, 64)
		if err != nil {
			continue
		}
		fld, known := fields[key]
		if !known {
			if cc.Extra == nil {
				cc.Extra = make(map[string]float64)
			}
			cc.Extra[key] = fval
			continue
		}
		switch fld.Kind() {
		case reflect.Float64:
			fld.SetFloat(fval)
		case reflect.Int, reflect.Int8:
			fld.SetInt(int64(fval))
		case reflect.Bool:
			fld.SetBool(fval != 0)
		}
	}
}

// calibFieldsByTag maps the json tag of every settable field to its
// reflect.Value, so the key=value form shares the JSON schema.
func calibFieldsByTag(cc *sgdive.CalibConsts) map[string]reflect.Value {
	out := make(map[string]reflect.Value)
	values := reflect.ValueOf(cc).Elem()
	types := values.Type()
	for i := 0; i < values.NumField(); i++ {
		tag := types.Field(i).Tag.Get("json")
		if tag == "" {
			continue
		}
		tag = strings.Split(tag, ",")[0]
		out[tag] = values.Field(i)
	}
	return out
}
