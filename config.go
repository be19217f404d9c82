// Copyright 2023 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package relc

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/dolthub/go-relational-compiler/sql"
	"github.com/dolthub/go-relational-compiler/sql/analyzer"
	"github.com/dolthub/go-relational-compiler/sql/planbuilder"
	"github.com/dolthub/go-relational-compiler/sql/stack"
)

// Config is the configuration of an Engine, usually read from a YAML file.
type Config struct {
	// DefaultNamespace is tried as a prefix of unqualified names.
	DefaultNamespace string `yaml:"default_namespace"`
	// DefaultDevice is asked for names the catalog does not know.
	DefaultDevice string `yaml:"default_device"`
	// ResolutionPath lists the libraries searched for unqualified names.
	ResolutionPath []string `yaml:"resolution_path"`
	// CaseCollision is either "ambiguous" or "prefer-exact".
	CaseCollision string `yaml:"case_collision"`
	// ArityWidening lets rows and tables convert to types with more columns.
	ArityWidening bool `yaml:"arity_widening"`
	// Optimize runs the optimizer after every successful compilation.
	Optimize bool `yaml:"optimize"`
	// SkipPasses names optimizer passes that do not run.
	SkipPasses []string `yaml:"skip_passes"`
	// Cache sizes; zero selects the default size.
	OperatorCacheSize   int `yaml:"operator_cache_size"`
	ConversionCacheSize int `yaml:"conversion_cache_size"`
	Debug               bool `yaml:"debug"`
	// Parallelism bounds the statements CompileBatch compiles at once. Zero
	// means no bound.
	Parallelism int `yaml:"parallelism"`
}

// DefaultConfig returns the configuration used for keys a configuration
// file leaves out.
func DefaultConfig() Config {
	return Config{
		CaseCollision: "ambiguous",
		Optimize:      true,
	}
}

// LoadConfig reads the configuration file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration. Unknown keys are an error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, sql.ErrInvalidConfig.New(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting of the configuration.
func (c Config) Validate() error {
	var err error
	if _, ok := stack.ParseCollisionPolicy(c.CaseCollision); !ok {
		err = multierr.Append(err, sql.ErrInvalidConfig.New(fmt.Sprintf("unknown case_collision %q", c.CaseCollision)))
	}
	for _, name := range c.SkipPasses {
		if _, ok := analyzer.ParseRuleId(name); !ok {
			err = multierr.Append(err, sql.ErrInvalidConfig.New(fmt.Sprintf("unknown optimizer pass %q", name)))
		}
	}
	if c.OperatorCacheSize < 0 {
		err = multierr.Append(err, sql.ErrInvalidConfig.New("operator_cache_size must not be negative"))
	}
	if c.ConversionCacheSize < 0 {
		err = multierr.Append(err, sql.ErrInvalidConfig.New("conversion_cache_size must not be negative"))
	}
	if c.Parallelism < 0 {
		err = multierr.Append(err, sql.ErrInvalidConfig.New("parallelism must not be negative"))
	}
	return err
}

// compilerOptions returns the compiler settings of a validated
// configuration.
func (c Config) compilerOptions() planbuilder.Options {
	policy, _ := stack.ParseCollisionPolicy(c.CaseCollision)
	return planbuilder.Options{
		DefaultNamespace: c.DefaultNamespace,
		DefaultDevice:    c.DefaultDevice,
		Path:             sql.NameResolutionPath(c.ResolutionPath),
		CollisionPolicy:  policy,
		ArityWidening:    c.ArityWidening,
	}
}

// skippedPasses returns the optimizer passes the configuration disables.
func (c Config) skippedPasses() []analyzer.RuleId {
	ids := make([]analyzer.RuleId, 0, len(c.SkipPasses))
	for _, name := range c.SkipPasses {
		if id, ok := analyzer.ParseRuleId(name); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
