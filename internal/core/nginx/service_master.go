package nginx

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	typesHashMaxRe    = regexp.MustCompile(`(?m)^\s*types_hash_max_size\s+\d+;`)
	typesHashBucketRe = regexp.MustCompile(`(?m)^\s*types_hash_bucket_size\s+\d+;`)
	httpBlockRe       = regexp.MustCompile(`http\s*\{`)
	httpOpenLineRe    = regexp.MustCompile(`^\s*http\s*\{`)
	serverOpenLineRe  = regexp.MustCompile(`^\s*server\s*\{`)
)

// EnsureMasterConfig patches nginx.conf so the enabled sites are
// actually included and the types_hash tables are large enough for
// many vhosts. The config is left untouched when all three settings
// are already present.
func (s *NginxService) EnsureMasterConfig() error {
	conf := s.settings.NginxConfPath
	content, err := s.filesystemHandler.ReadFile(conf)
	if err != nil {
		return fmt.Errorf("reading %s: %w", conf, err)
	}

	includeRe := regexp.MustCompile(`(?m)^\s*include\s+` + regexp.QuoteMeta(s.settings.SitesEnabledDir) + `/\*;`)

	var missing []string
	if !includeRe.Match(content) {
		missing = append(missing,
			"    # Include all enabled sites",
			"    include "+s.settings.SitesEnabledDir+"/*;",
		)
	}
	if !typesHashMaxRe.Match(content) {
		missing = append(missing, "    types_hash_max_size 2048;")
	}
	if !typesHashBucketRe.Match(content) {
		missing = append(missing, "    types_hash_bucket_size 128;")
	}
	if len(missing) == 0 {
		return nil
	}

	loc := httpBlockRe.FindIndex(content)
	if loc == nil {
		return fmt.Errorf("no http block found in %s", conf)
	}

	patched := make([]byte, 0, len(content)+256)
	patched = append(patched, content[:loc[1]]...)
	patched = append(patched, '\n')
	patched = append(patched, strings.Join(missing, "\n")...)
	patched = append(patched, content[loc[1]:]...)

	return s.patchMasterConfig(conf+".backup", content, patched)
}

// CommentDefaultServer comments out server blocks declared directly in
// nginx.conf. Distribution packages ship a catch-all server there that
// shadows the generated vhosts. Returns whether the file was modified.
func (s *NginxService) CommentDefaultServer() (bool, error) {
	conf := s.settings.NginxConfPath
	content, err := s.filesystemHandler.ReadFile(conf)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", conf, err)
	}

	lines := strings.SplitAfter(string(content), "\n")
	patched := make([]string, 0, len(lines))

	var (
		inHttp     bool
		inServer   bool
		braceDepth int
		modified   bool
	)
	for _, line := range lines {
		if httpOpenLineRe.MatchString(line) {
			inHttp = true
		}
		if inHttp && !inServer && serverOpenLineRe.MatchString(line) {
			inServer = true
			braceDepth = strings.Count(line, "{") - strings.Count(line, "}")
			patched = append(patched, commentOut(line, &modified))
			if braceDepth <= 0 {
				inServer = false
			}
			continue
		}
		if inServer {
			braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
			patched = append(patched, commentOut(line, &modified))
			if braceDepth <= 0 {
				inServer = false
			}
			continue
		}
		if inHttp && strings.TrimSpace(line) == "}" {
			inHttp = false
		}
		patched = append(patched, line)
	}

	if !modified {
		return false, nil
	}
	if err := s.patchMasterConfig(conf+".backup-default", content, []byte(strings.Join(patched, ""))); err != nil {
		return false, err
	}
	return true, nil
}

func commentOut(line string, modified *bool) string {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return line
	}
	*modified = true
	return "#" + line
}

// patchMasterConfig replaces nginx.conf with a rollback path: the
// original goes to backup first and comes back when nginx rejects the
// patched config.
func (s *NginxService) patchMasterConfig(backup string, original, patched []byte) error {
	conf := s.settings.NginxConfPath
	if err := s.filesystemHandler.WriteFileSync(backup, original, 0o644); err != nil {
		return fmt.Errorf("backing up %s: %w", conf, err)
	}
	if err := s.filesystemHandler.WriteFileSync(conf, patched, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", conf, err)
	}
	if err := s.Validate(); err != nil {
		if restoreErr := s.filesystemHandler.WriteFileSync(conf, original, 0o644); restoreErr != nil {
			return fmt.Errorf("%s rejected and restore from %s failed: %v: %w", conf, backup, restoreErr, err)
		}
		return fmt.Errorf("%s rejected, backup restored: %w", conf, err)
	}
	return nil
}

// Validate runs the nginx config test.
func (s *NginxService) Validate() error {
	if out, err := s.commandFactory.Command("nginx", "-t").CombineOutput(); err != nil {
		return fmt.Errorf("nginx -t failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Reload applies config changes without dropping live connections.
func (s *NginxService) Reload() error {
	if out, err := s.commandFactory.Command("systemctl", "reload", "nginx").CombineOutput(); err != nil {
		return fmt.Errorf("reloading nginx: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}
