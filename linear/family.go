package linear

import (
	"sort"
	"strings"
	"sync"

	"github.com/YuminosukeSato/mobtree/core/model"
	"github.com/YuminosukeSato/mobtree/pkg/errors"
)

// Constructor は族名から新しい Fitter を作る関数
type Constructor func() model.Fitter

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		"gaussian": Gaussian,
		"binomial": func() model.Fitter { return Logistic() },
		"logistic": func() model.Fitter { return Logistic() },
		"poisson":  func() model.Fitter { return Poisson() },
	}
)

// Register は族を登録する。保存した木を読み戻すときに Custom の族を解決するのに使う。
// 組み込みの族は上書きできない。
func Register(name string, ctor Constructor) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || ctor == nil {
		return errors.NewValidationError("family", "name and constructor are required", name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	switch name {
	case "gaussian", "binomial", "logistic", "poisson":
		return errors.NewValidationError("family", "built-in family cannot be replaced", name)
	}
	registry[name] = ctor
	return nil
}

// Lookup は族名に対応する Fitter を返す（大文字小文字は区別しない）
func Lookup(name string) (model.Fitter, error) {
	registryMu.RLock()
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewValidationError("family", "unknown family", name)
	}
	return ctor(), nil
}

// Families は登録済みの族名をソートして返す
func Families() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
