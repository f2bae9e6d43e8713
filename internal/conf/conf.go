package conf

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

type Conf struct {
	Log     Log     `yaml:"log"`
	Listen  Listen  `yaml:"listen"`
	Tuning  Tuning  `yaml:"tuning"`
	Devices Devices `yaml:"devices"`
}

func LoadFromFile(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var conf Conf

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return &conf, err
	}

	conf.setDefaults()
	if err := conf.validate(); err != nil {
		return &conf, err
	}

	return &conf, nil
}

// Default returns a config with every field at its default, for
// embedders that wire the server without a config file. Defaults
// always validate; validation here only fills the parsed fields.
func Default() *Conf {
	var conf Conf
	conf.setDefaults()
	if err := conf.validate(); err != nil {
		panic(err)
	}
	return &conf
}

func (c *Conf) setDefaults() {
	c.Log.setDefaults()
	c.Listen.setDefaults()
	c.Tuning.setDefaults()
	c.Devices.setDefaults()
}

func (c *Conf) validate() error {
	var allErrors []error

	allErrors = append(allErrors, c.Log.validate()...)
	allErrors = append(allErrors, c.Listen.validate()...)
	allErrors = append(allErrors, c.Tuning.validate()...)
	allErrors = append(allErrors, c.Devices.validate()...)

	return writeErr(allErrors)
}

func writeErr(allErrors []error) error {
	if len(allErrors) > 0 {
		var messages []string
		for _, err := range allErrors {
			messages = append(messages, err.Error())
		}
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(messages, "\n  - "))
	}
	return nil
}
