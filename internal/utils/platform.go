package utils

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
)

// DetectServiceUser returns the account that should own project files
// and run the gunicorn services: the invoking sudo user when present,
// otherwise the owner of the portfolio root, otherwise www-data.
func DetectServiceUser(root string) string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		return sudoUser
	}

	st, err := os.Stat(root)
	if err == nil {
		if sys, ok := st.Sys().(*syscall.Stat_t); ok {
			if u, err := user.LookupId(strconv.FormatUint(uint64(sys.Uid), 10)); err == nil {
				return u.Username
			}
		}
	}
	return "www-data"
}

// DetectWebUser probes the usual web server accounts and returns the
// first one that exists on this host.
func DetectWebUser(commandFactory CommandFactory) string {
	for _, candidate := range []string{"nginx", "http", "www-data"} {
		check := commandFactory.Command("id", candidate)
		if err := check.Run(); err == nil {
			return candidate
		}
	}
	return "http"
}

// DetectCertDir returns the letsencrypt live directory for the base
// domain when a certificate is present there, otherwise empty. Sites
// render plain HTTP without one.
func DetectCertDir(filesystemHandler FilesystemHandler, baseDomain string) string {
	if baseDomain == "" {
		return ""
	}
	dir := filepath.Join(LetsencryptLiveDir, baseDomain)
	if _, err := filesystemHandler.Stat(filepath.Join(dir, "fullchain.pem")); err != nil {
		return ""
	}
	return dir
}
