package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FinLab/internal/domain/models"
	domrepo "FinLab/internal/domain/repository"
)

// YAMLSetLoader reads indicator sets from YAML files. A ref is a file path,
// absolute or relative to the loader's directory; a bare name resolves to
// <dir>/<name>.yaml. An empty ref loads the fallback file.
type YAMLSetLoader struct {
	dir      string
	fallback string
	validate *validator.Validate
}

var _ domrepo.IndicatorSetLoader = (*YAMLSetLoader)(nil)

func NewYAMLSetLoader(fallback string) *YAMLSetLoader {
	return &YAMLSetLoader{dir: filepath.Dir(fallback), fallback: fallback, validate: validator.New()}
}

func (y *YAMLSetLoader) Load(ctx context.Context, ref string) (*models.IndicatorSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := y.resolve(ref)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read indicator set %s: %w", path, err)
	}
	return ParseIndicatorSet(b, y.validate)
}

func (y *YAMLSetLoader) resolve(ref string) string {
	switch {
	case ref == "":
		return y.fallback
	case filepath.IsAbs(ref):
		return ref
	case !strings.ContainsAny(ref, `/\`) && filepath.Ext(ref) == "":
		return filepath.Join(y.dir, ref+".yaml")
	default:
		return filepath.Join(y.dir, ref)
	}
}

// ParseIndicatorSet decodes, defaults and validates one set document.
func ParseIndicatorSet(b []byte, v *validator.Validate) (*models.IndicatorSet, error) {
	var set models.IndicatorSet
	if err := yaml.Unmarshal(b, &set); err != nil {
		return nil, fmt.Errorf("parse indicator set: %w", err)
	}
	if err := defaults.Set(&set); err != nil {
		return nil, fmt.Errorf("indicator set defaults: %w", err)
	}
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(&set); err != nil {
		return nil, fmt.Errorf("invalid indicator set: %w", err)
	}
	return &set, nil
}
