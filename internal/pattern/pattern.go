// Package pattern expands the archive-name token language of:
// {Name} {FileName} {DirectoryName} {ComputerName} {FullComputerName}
// {SystemType} {TimeStamp} {RunId}.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SystemType enumerates the {SystemType} token's allowed values.
type SystemType string

const (
	WorkStation      SystemType = "WorkStation"
	DomainController SystemType = "DomainController"
	Server           SystemType = "Server"
)

// Values supplies the token substitutions for one expansion. Fields left
// zero are simply substituted as empty strings, except TimeStamp and
// RunId which are generated when unset so every expansion is deterministic
// only in the caller's control (tests should set them explicitly).
type Values struct {
	Name             string
	FileName         string
	DirectoryName    string
	ComputerName     string
	FullComputerName string
	SystemType       SystemType
	TimeStamp        time.Time
	RunID            uuid.UUID
}

var tokenRe = regexp.MustCompile(`\{[A-Za-z]+\}`)

// Expand substitutes every recognized token in tmpl exactly once, before
// any disk operation is performed. Unknown tokens are left untouched so
// that a caller can detect a typo'd pattern rather than silently dropping
// it (the config layer, out of core scope, is expected to validate tokens
// against this package's known set before accepting a pattern).
func Expand(tmpl string, v Values) string {
	ts := v.TimeStamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	runID := v.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}

	repl := map[string]string{
		"{Name}":             v.Name,
		"{FileName}":         v.FileName,
		"{DirectoryName}":    v.DirectoryName,
		"{ComputerName}":     v.ComputerName,
		"{FullComputerName}": v.FullComputerName,
		"{SystemType}":       string(v.SystemType),
		"{TimeStamp}":        ts.UTC().Format("20060102_150405"),
		"{RunId}":            runID.String(),
	}

	return tokenRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		if s, ok := repl[tok]; ok {
			return s
		}
		return tok
	})
}

// KnownTokens lists the tokens Expand understands, for front-end
// validation of user-supplied templates.
func KnownTokens() []string {
	return []string{
		"{Name}", "{FileName}", "{DirectoryName}", "{ComputerName}",
		"{FullComputerName}", "{SystemType}", "{TimeStamp}", "{RunId}",
	}
}

// InverseExtract recovers ComputerName, SystemType and TimeStamp from a
// string built from tmpl, when those tokens were present in tmpl:
// building then inverse-parsing an archive name recovers the tokens
// that were substituted.
//
// tmpl must contain each token at most once; literal regex metacharacters
// surrounding tokens are escaped before compilation.
func InverseExtract(tmpl, built string) (computerName string, systemType SystemType, timeStamp time.Time, err error) {
	type slot struct {
		token string
		group string
	}
	slots := []slot{
		{"{ComputerName}", `(?P<computername>.*?)`},
		{"{SystemType}", `(?P<systemtype>WorkStation|DomainController|Server)`},
		{"{TimeStamp}", `(?P<timestamp>\d{8}_\d{6})`},
	}

	rx := regexp.QuoteMeta(tmpl)
	used := map[string]bool{}
	for _, s := range slots {
		quoted := regexp.QuoteMeta(s.token)
		if strings.Contains(rx, quoted) {
			rx = strings.Replace(rx, quoted, s.group, 1)
			used[s.token] = true
		}
	}
	// Any other token becomes a non-greedy wildcard so it doesn't break
	// the match.
	for _, t := range KnownTokens() {
		if used[t] {
			continue
		}
		rx = strings.ReplaceAll(rx, regexp.QuoteMeta(t), `.*?`)
	}

	re, reErr := regexp.Compile("^" + rx + "$")
	if reErr != nil {
		return "", "", time.Time{}, fmt.Errorf("pattern %q does not compile to a valid extractor: %w", tmpl, reErr)
	}
	m := re.FindStringSubmatch(built)
	if m == nil {
		return "", "", time.Time{}, fmt.Errorf("built name %q does not match pattern %q", built, tmpl)
	}
	names := re.SubexpNames()
	for i, name := range names {
		switch name {
		case "computername":
			computerName = m[i]
		case "systemtype":
			systemType = SystemType(m[i])
		case "timestamp":
			if t, tErr := time.Parse("20060102_150405", m[i]); tErr == nil {
				timeStamp = t
			}
		}
	}
	return computerName, systemType, timeStamp, nil
}
