package output

import (
	"io"

	"github.com/knadh/koanf/parsers/yaml"
)

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// Format formats data as YAML. Lists are rendered under an "items" key.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	v, err := toGeneric(data)
	if err != nil {
		return err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		obj = map[string]any{"items": v}
	}
	b, err := yaml.Parser().Marshal(obj)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
