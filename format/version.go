package format

import (
	"math"

	"github.com/pkg/errors"

	"stripefile/utils"
)

// Version is the on-disk structural revision of the file format, independent
// of which writer produced the file. New values are only added for changes an
// old reader cannot decode; behavioral fixes that keep the layout readable go
// into WriterVersion instead.
type Version int32

const (
	V1_0 Version = iota
	V1_1

	// VersionFuture stands in for any version this build does not know about.
	VersionFuture
)

// CurrentVersion is the format revision this build writes by default.
const CurrentVersion = V1_1

type versionInfo struct {
	name  string
	major int
	minor int
}

var versionInfos = [...]versionInfo{
	V1_0:          {"1.0", 1, 0},
	V1_1:          {"1.1", 1, 1},
	VersionFuture: {"future", math.MaxInt32, math.MaxInt32},
}

func (v Version) Name() string {
	if v < 0 || int(v) >= len(versionInfos) {
		return versionInfos[VersionFuture].name
	}
	return versionInfos[v].name
}

func (v Version) Major() int { return versionInfos[v].major }

func (v Version) Minor() int { return versionInfos[v].minor }

func (v Version) String() string { return v.Name() }

// VersionByName resolves a configured version name. Unlike footer decoding,
// configuration must name a version this build can actually write, so an
// unknown name is a configuration error rather than VersionFuture.
func VersionByName(name string) (Version, error) {
	for v := V1_0; v < VersionFuture; v++ {
		if versionInfos[v].name == name {
			return v, nil
		}
	}
	return VersionFuture, errors.Wrapf(utils.ErrConfiguration, "unknown format version %q", name)
}

// VersionFromName maps a version name read from a file footer, with names
// from newer builds degrading to VersionFuture instead of failing.
func VersionFromName(name string) Version {
	for v := V1_0; v < VersionFuture; v++ {
		if versionInfos[v].name == name {
			return v
		}
	}
	return VersionFuture
}

// WriterIdentity names which software implementation produced a file.
type WriterIdentity int32

const (
	WriterGo   WriterIdentity = iota // this library, the reference implementation
	WriterCPP                        // the C++ writer
	WriterRust                       // the Rust writer

	numWriterIdentities
)

// WriterUnknown is returned for any id outside the known range.
const WriterUnknown WriterIdentity = math.MaxInt32

var writerIdentityNames = map[WriterIdentity]string{
	WriterGo:      "go",
	WriterCPP:     "cpp",
	WriterRust:    "rust",
	WriterUnknown: "unknown",
}

func (w WriterIdentity) ID() int32 { return int32(w) }

func (w WriterIdentity) String() string {
	if name, ok := writerIdentityNames[w]; ok {
		return name
	}
	return writerIdentityNames[WriterUnknown]
}

// WriterIdentityFromID is total: ids outside the known range map to
// WriterUnknown and never fail, so footers from future writers stay readable.
func WriterIdentityFromID(id int32) WriterIdentity {
	if id >= 0 && id < int32(numWriterIdentities) {
		return WriterIdentity(id)
	}
	return WriterUnknown
}

// WriterVersion records which bug fixes and behavioral changes a writer
// generation included, without changing the file format itself. When you fix
// the writer in a way that affects written bytes but keeps them decodable,
// add a value here instead of a Version.
//
// Local ids 0..5 are reserved for the reference (Go) writer's historical fix
// sequence; every other identity starts its history at 6 so that readers
// predating the multi-writer model still order the reference fixes correctly.
type WriterVersion int32

const (
	// reference Go writer
	WriterVersionOriginal        WriterVersion = iota // (go, 0)
	WriterVersionStringStatsUTF8                      // (go, 1) string min/max statistics are utf8
	WriterVersionColumnNames                          // (go, 2) real column names in the schema
	WriterVersionBatchedWriter                        // (go, 3) batched column writer
	WriterVersionDecimalPresent                       // (go, 4) decimals write the present stream correctly
	WriterVersionBloomUTF8                            // (go, 5) bloom filters hash utf8 bytes
	WriterVersionTimestampUTC                         // (go, 6) timestamp statistics are utc
	WriterVersionTrimmedStrings                       // (go, 7) long string statistics are trimmed and flagged
	WriterVersionEncryption                           // (go, 8) column encryption metadata

	// other writers
	WriterVersionCPPOriginal  // (cpp, 6)
	WriterVersionRustOriginal // (rust, 6)

	// WriterVersionFuture stands in for a generation from a future writer.
	WriterVersionFuture
)

// CurrentWriterVersion is the generation this build stamps into new files.
const CurrentWriterVersion = WriterVersionEncryption

// reservedFixIDs is the first local id non-reference identities may use.
const reservedFixIDs = 6

type writerVersionInfo struct {
	identity WriterIdentity
	id       int32
	name     string
}

var writerVersionInfos = [...]writerVersionInfo{
	WriterVersionOriginal:        {WriterGo, 0, "original"},
	WriterVersionStringStatsUTF8: {WriterGo, 1, "string-stats-utf8"},
	WriterVersionColumnNames:     {WriterGo, 2, "column-names"},
	WriterVersionBatchedWriter:   {WriterGo, 3, "batched-writer"},
	WriterVersionDecimalPresent:  {WriterGo, 4, "decimal-present"},
	WriterVersionBloomUTF8:       {WriterGo, 5, "bloom-utf8"},
	WriterVersionTimestampUTC:    {WriterGo, 6, "timestamp-utc"},
	WriterVersionTrimmedStrings:  {WriterGo, 7, "trimmed-strings"},
	WriterVersionEncryption:      {WriterGo, 8, "encryption"},
	WriterVersionCPPOriginal:     {WriterCPP, 6, "cpp-original"},
	WriterVersionRustOriginal:    {WriterRust, 6, "rust-original"},
	WriterVersionFuture:          {WriterUnknown, math.MaxInt32, "future"},
}

func (v WriterVersion) Identity() WriterIdentity { return writerVersionInfos[v].identity }

func (v WriterVersion) ID() int32 { return writerVersionInfos[v].id }

func (v WriterVersion) String() string { return writerVersionInfos[v].name }

// buildWriterVersionTable indexes the closed set by (identity, local id),
// failing on a duplicate pair instead of letting one generation shadow another.
func buildWriterVersionTable(infos []writerVersionInfo) (map[WriterIdentity]map[int32]WriterVersion, error) {
	table := make(map[WriterIdentity]map[int32]WriterVersion)
	for i, info := range infos {
		if info.identity == WriterUnknown {
			continue
		}
		byID := table[info.identity]
		if byID == nil {
			byID = make(map[int32]WriterVersion)
			table[info.identity] = byID
		}
		if prev, ok := byID[info.id]; ok {
			return nil, errors.Wrapf(utils.ErrConfiguration,
				"duplicate writer version id %d for writer %s: %s and %s",
				info.id, info.identity, prev, WriterVersion(i))
		}
		byID[info.id] = WriterVersion(i)
	}
	return table, nil
}

// Built once at process start so a collision in the closed set fails fast
// instead of surfacing on whichever file happens to hit it first.
var writerVersionTable = func() map[WriterIdentity]map[int32]WriterVersion {
	table, err := buildWriterVersionTable(writerVersionInfos[:])
	if err != nil {
		panic(err)
	}
	return table
}()

// WriterVersionFrom maps the (identity, local id) pair stored in a file
// footer to the enumeration. Unknown identities and unknown future ids map to
// WriterVersionFuture; a non-reference identity claiming an id inside the
// reserved range is a corrupt or misconfigured file and fails.
func WriterVersionFrom(identity WriterIdentity, id int32) (WriterVersion, error) {
	if identity == WriterUnknown {
		return WriterVersionFuture, nil
	}
	if identity != WriterGo && id < reservedFixIDs {
		return WriterVersionFuture, errors.Wrapf(utils.ErrConfiguration,
			"illegal writer version %d for writer %s", id, identity)
	}
	if v, ok := writerVersionTable[identity][id]; ok {
		return v, nil
	}
	return WriterVersionFuture, nil
}

// Includes reports whether a file written at version v contains the given
// required fix, or comes from a different writer implementation.
//
// Fix history is only tracked within one writer identity: a required fix from
// a different identity is treated as satisfied no matter how large its id.
// That means Includes can never gate on another implementation's bugs; callers
// that need a cross-implementation guarantee have to gate on the identity
// itself. This is long-standing observed behavior and is kept exactly.
func (v WriterVersion) Includes(fix WriterVersion) bool {
	return v.Identity() != fix.Identity() || v.ID() >= fix.ID()
}
