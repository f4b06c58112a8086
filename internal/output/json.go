package output

import "encoding/json"

// JSONFormatter renders the report's underlying value as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) Format(report Report) (string, error) {
	if report.Value == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(report.Value, "", "  ")
	} else {
		data, err = json.Marshal(report.Value)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
