package volume

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LocationKind classifies a parsed location string against the
// supported location grammar.
type LocationKind int

const (
	LocationMounted LocationKind = iota
	LocationVolumeID
	LocationHarddiskVolume
	LocationPhysicalDrive
	LocationImageFile
	LocationSnapshot
	LocationOfflineMFT
)

// ParsedLocation is the decomposed form of a location string, ready to
// be handed to the matching Reader constructor.
type ParsedLocation struct {
	Kind      LocationKind
	Raw       string
	Path      string // drive letter, volume-id device path, or file path
	SubPath   string
	Partition string // "N" or "*"
	Offset    int64
	Size      int64
	Sector    int64
}

var (
	reMounted        = regexp.MustCompile(`^([A-Za-z]):\\?(.*)$`)
	reVolumeID       = regexp.MustCompile(`^\\\\\?\\Volume\{[0-9A-Fa-f-]+\}\\?(.*)$`)
	reHarddiskVolume = regexp.MustCompile(`^\\\\\.\\HarddiskVolume\d+$`)
	rePhysicalDrive  = regexp.MustCompile(`^\\\\\.\\PhysicalDrive\d+(,.*)?$`)
	reSnapshot       = regexp.MustCompile(`^\\\\\?\\GLOBALROOT\\Device\\HarddiskVolumeShadowCopy\d+$`)
	reParamSuffix    = regexp.MustCompile(`,(partition|offset|size|sector)=([^,]+)`)
)

// ParseLocation classifies a location string against the grammar. It
// does not touch the filesystem; OfflineMFT vs ImageFile for a bare path
// is disambiguated by the caller peeking at the file's first four bytes
// ("FILE" signals an offline MFT dump) since the grammar alone can't
// distinguish them.
func ParseLocation(loc string) (ParsedLocation, error) {
	if m := reMounted.FindStringSubmatch(loc); m != nil && len(loc) >= 2 && loc[1] == ':' && !reParamSuffix.MatchString(loc) {
		return ParsedLocation{Kind: LocationMounted, Raw: loc, Path: strings.ToUpper(m[1]) + ":", SubPath: m[2]}, nil
	}
	if m := reVolumeID.FindStringSubmatch(loc); m != nil {
		return ParsedLocation{Kind: LocationVolumeID, Raw: loc, Path: strings.TrimSuffix(loc, "\\"+m[1]), SubPath: m[1]}, nil
	}
	if reHarddiskVolume.MatchString(loc) {
		return ParsedLocation{Kind: LocationHarddiskVolume, Raw: loc, Path: loc}, nil
	}
	if m := rePhysicalDrive.FindStringSubmatch(loc); m != nil {
		pl := ParsedLocation{Kind: LocationPhysicalDrive, Raw: loc}
		base := strings.TrimSuffix(loc, m[1])
		pl.Path = base
		if err := parseParams(m[1], &pl); err != nil {
			return ParsedLocation{}, err
		}
		return pl, nil
	}
	if reSnapshot.MatchString(loc) {
		return ParsedLocation{Kind: LocationSnapshot, Raw: loc, Path: loc}, nil
	}

	// Remaining shape: "path[,partition=N|*][,offset=...[,size=...[,sector=...]]]"
	// used by both image files and offline MFT dumps; caller resolves
	// which on open.
	base := loc
	var params string
	if idx := strings.Index(loc, ","); idx >= 0 {
		base = loc[:idx]
		params = loc[idx:]
	}
	pl := ParsedLocation{Kind: LocationImageFile, Raw: loc, Path: base}
	if params != "" {
		if err := parseParams(params, &pl); err != nil {
			return ParsedLocation{}, err
		}
	}
	return pl, nil
}

func parseParams(s string, pl *ParsedLocation) error {
	for _, m := range reParamSuffix.FindAllStringSubmatch(s, -1) {
		key, val := m[1], m[2]
		switch key {
		case "partition":
			pl.Partition = val
		case "offset":
			n, err := strconv.ParseInt(val, 0, 64)
			if err != nil {
				return fmt.Errorf("volume: bad offset %q: %w", val, err)
			}
			pl.Offset = n
		case "size":
			n, err := strconv.ParseInt(val, 0, 64)
			if err != nil {
				return fmt.Errorf("volume: bad size %q: %w", val, err)
			}
			pl.Size = n
		case "sector":
			n, err := strconv.ParseInt(val, 0, 64)
			if err != nil {
				return fmt.Errorf("volume: bad sector %q: %w", val, err)
			}
			pl.Sector = n
		}
	}
	return nil
}
