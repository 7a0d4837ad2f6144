package decode

import (
	"encoding/json"

	sgdive "github.com/seamote/sgdive"
)

// LoadDiveRecord reads a dive record document. The telemetry vectors
// arrive exactly as the vehicle reported them; conditioning is the
// processing core's job, not the loader's.
func LoadDiveRecord(file_uri string, config_uri string) (*sgdive.DiveRecord, error) {
	data, err := readAll(file_uri, config_uri)
	if err != nil {
		return nil, err
	}

	dive := &sgdive.DiveRecord{}
	err = json.Unmarshal(data, dive)
	if err != nil {
		return nil, err
	}

	return dive, nil
}

// LoadDirectives reads a profile directives file into the given
// directive set. Parsing is total; unknown tokens warn and are skipped.
func LoadDirectives(file_uri string, config_uri string, directives *sgdive.ProfileDirectives) error {
	data, err := readAll(file_uri, config_uri)
	if err != nil {
		return err
	}

	directives.ParseString(string(data))
	return nil
}
