package harness

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/weiihann/swapbench/store"
)

// ErrUnknownBackend is returned for a backend name OpenBackend does not know.
var ErrUnknownBackend = errors.New("unknown backend")

// KnownBackends returns the list of supported storage engine names.
func KnownBackends() []string {
	return []string{"memory", "pebble", "mdbx"}
}

// OpenBackend opens the named storage engine rooted at dir. The memory
// engine ignores dir.
func OpenBackend(name, dir string) (store.Backend, error) {
	switch name {
	case "memory":
		return store.NewMemory(), nil
	case "pebble":
		db, err := store.OpenPebble(dir, store.PebbleOptions{})
		if err != nil {
			return nil, err
		}

		return db, nil
	case "mdbx":
		db, err := store.OpenMDBX(dir)
		if err != nil {
			return nil, err
		}

		return db, nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend,
			"%q (known: %s)", name, strings.Join(KnownBackends(), ", "))
	}
}

// ResolveReportPath returns where the sample report for backend goes. With
// one backend the output path is used as is; with several, the backend name
// is inserted before the extension so reports do not overwrite each other.
func ResolveReportPath(output, backend string, multi bool) string {
	if !multi {
		return output
	}

	ext := filepath.Ext(output)
	base := strings.TrimSuffix(output, ext)

	return fmt.Sprintf("%s-%s%s", base, backend, ext)
}
