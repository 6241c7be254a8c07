// Package lifecycle keeps the installed-version marker in the option store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"recently-viewed/server/internal/storage"
)

const (
	VersionOption = "recently_viewed_products_version"

	// obsoleteOption was written by an older release and is dropped on first install.
	obsoleteOption = "woocommerce_composite_products_extension_active"
)

type Result string

const (
	Installed Result = "installed"
	Upgraded  Result = "upgraded"
	Unchanged Result = "unchanged"
)

// Activate records version as installed. It is safe to run on every start.
func Activate(ctx context.Context, options storage.OptionStore, version string, log *slog.Logger) (Result, error) {
	current, err := options.GetOption(ctx, VersionOption)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if _, err := options.AddOption(ctx, VersionOption, version); err != nil {
			return "", fmt.Errorf("install marker: %w", err)
		}
		if err := options.DeleteOption(ctx, obsoleteOption); err != nil {
			return "", fmt.Errorf("drop obsolete option: %w", err)
		}
		log.InfoContext(ctx, "lifecycle.installed", "version", version)
		return Installed, nil
	case err != nil:
		return "", fmt.Errorf("read version marker: %w", err)
	}

	if CompareVersions(current, version) < 0 {
		if err := options.UpdateOption(ctx, VersionOption, version); err != nil {
			return "", fmt.Errorf("upgrade marker: %w", err)
		}
		log.InfoContext(ctx, "lifecycle.upgraded", "from", current, "to", version)
		return Upgraded, nil
	}
	return Unchanged, nil
}

// Deactivate removes the version marker.
func Deactivate(ctx context.Context, options storage.OptionStore) error {
	if err := options.DeleteOption(ctx, VersionOption); err != nil {
		return fmt.Errorf("remove version marker: %w", err)
	}
	return nil
}

// CompareVersions compares dotted numeric versions, returning -1, 0 or 1.
// Missing components count as zero and non-numeric components compare as text.
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < max(len(as), len(bs)); i++ {
		x, y := part(as, i), part(bs, i)
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		if xerr == nil && yerr == nil {
			if xn != yn {
				if xn < yn {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func part(parts []string, i int) string {
	if i < len(parts) && parts[i] != "" {
		return parts[i]
	}
	return "0"
}
