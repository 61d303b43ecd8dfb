package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/treeverse/pgpack/pkg/packerrors"
)

type Platform string

const (
	PlatformAuto      Platform = "auto"
	PlatformPostgres  Platform = "postgres"
	PlatformGreenplum Platform = "greenplum"
)

var (
	ErrUnknownPlatform = fmt.Errorf("%w: unknown platform", packerrors.ErrConfig)
	ErrSchemaNotFound  = fmt.Errorf("%w: schema not found", packerrors.ErrConfig)
	ErrUnexpectedRow   = fmt.Errorf("%w: unexpected catalog result", packerrors.ErrCatalogQuery)
)

// ParsePlatform accepts auto, postgres and greenplum, in any case.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformAuto, PlatformPostgres, PlatformGreenplum:
		return p, nil
	case "":
		return PlatformAuto, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownPlatform, s)
	}
}

// Target is the database a plan is computed against: the managed schema and
// the server flavor that decides which catalog columns exist.
type Target struct {
	Schema      string
	Platform    Platform
	ServerMajor int
}

func (t Target) String() string {
	return fmt.Sprintf("%s %d (schema %s)", t.Platform, t.ServerMajor, t.Schema)
}

// AggregatePredicate is the boolean expression telling whether the pg_proc
// row aliased by alias is an aggregate.
func (t Target) AggregatePredicate(alias string) string {
	if t.hasProkind() {
		return alias + ".prokind = 'a'"
	}
	return alias + ".proisagg"
}

func (t Target) hasProkind() bool {
	switch t.Platform {
	case PlatformGreenplum:
		return t.ServerMajor >= 7
	default:
		return t.ServerMajor >= 11
	}
}

// OperatorClassMethodColumn names the pg_opclass column referencing pg_am.
func (t Target) OperatorClassMethodColumn() string {
	if t.Platform == PlatformGreenplum && t.ServerMajor < 5 {
		return "opcamid"
	}
	return "opcmethod"
}

const versionQuery = `SELECT version() AS banner, current_setting('server_version_num') AS num`

var greenplumBanner = regexp.MustCompile(`Greenplum Database (\d+)`)

// DetectTarget reads the server banner to fill in the platform and major
// version. An explicit platform is kept; auto picks greenplum when the banner
// names it.
func DetectTarget(ctx context.Context, q Querier, schema string, platform Platform) (Target, error) {
	if platform == "" {
		platform = PlatformAuto
	}
	rows, err := q.Query(ctx, versionQuery)
	if err != nil {
		return Target{}, err
	}
	if len(rows) != 1 {
		return Target{}, fmt.Errorf("%w: server version returned %d rows", ErrUnexpectedRow, len(rows))
	}
	banner := rows[0]["banner"]
	gp := greenplumBanner.FindStringSubmatch(banner)

	target := Target{Schema: strings.ToLower(schema), Platform: platform}
	if platform == PlatformAuto {
		target.Platform = PlatformPostgres
		if gp != nil {
			target.Platform = PlatformGreenplum
		}
	}
	switch target.Platform {
	case PlatformGreenplum:
		if gp == nil {
			return Target{}, fmt.Errorf("%w: no greenplum version in %q", ErrUnexpectedRow, banner)
		}
		target.ServerMajor, _ = strconv.Atoi(gp[1])
	case PlatformPostgres:
		num, err := strconv.Atoi(rows[0]["num"])
		if err != nil {
			return Target{}, fmt.Errorf("%w: server_version_num %q", ErrUnexpectedRow, rows[0]["num"])
		}
		target.ServerMajor = majorFromVersionNum(num)
	default:
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return target, nil
}

// majorFromVersionNum maps 150004 to 15 and 90624 to 9.
func majorFromVersionNum(num int) int {
	return num / 10000
}
