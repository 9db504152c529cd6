package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that also accepts day and week units ("1d",
// "2w3d") in YAML and in environment variables.
type Duration time.Duration

func ParseDuration(s string) (Duration, error) {
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", s)
	}
	return Duration(d), nil
}

// SetValue implements cleanenv.Setter.
func (d *Duration) SetValue(s string) error {
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return d.SetValue(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return str2duration.String(time.Duration(d))
}
