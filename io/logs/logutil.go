// Package logs wires additional sinks into the process-wide logrus logger
// and scrubs credentials from values that end up in log lines.
package logs

import (
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func addLogWriter(w io.Writer) {
	mw := io.MultiWriter(logrus.StandardLogger().Out, w)
	logrus.SetOutput(mw)
}

// ConfigurePersistentLogging mirrors everything written to stdout into the
// given file. File content is identical to the console output.
func ConfigurePersistentLogging(logFileName string) error {
	logrus.WithField("logFileName", logFileName).Info("Logs will be made persistent")
	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304
	if err != nil {
		return err
	}

	addLogWriter(f)

	logrus.Info("File logging initialized")
	return nil
}

// MaskCredentials masks the userinfo, path and fragment of a node URL so
// tokens embedded in beacon node or key-manager addresses never reach the
// logs. Scheme and host stay untouched; strings that do not parse as a URL
// are returned as is.
func MaskCredentials(currURL string) string {
	masked := currURL
	u, err := url.Parse(currURL)
	if err != nil {
		return currURL
	}
	if u.User != nil {
		masked = strings.Replace(masked, u.User.String(), "***", 1)
	}
	if len(u.RequestURI()) > 1 { // ignore the bare '/'
		masked = strings.Replace(masked, u.RequestURI(), "/***", 1)
	}
	if u.Fragment != "" {
		masked = strings.Replace(masked, u.EscapedFragment(), "***", 1)
	}
	return masked
}
