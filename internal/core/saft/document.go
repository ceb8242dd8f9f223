package saft

import (
	"path"
	"regexp"
	"strings"
)

// Kind classifies a remote file by its naming convention.
type Kind string

const (
	KindInvoice    Kind = "FR"
	KindCreditNote Kind = "NC"
	KindOpenGCs    Kind = "OPENGCS"
	KindUnknown    Kind = ""
)

const openGCsPrefix = "opengcs-"

// RemoteDocument is a candidate file on the remote server and, once fetched, its local copy.
type RemoteDocument struct {
	Filename      string `json:"filename"`
	RemotePath    string `json:"remote_path"`
	AccountFolder string `json:"account_folder"`
	LocalPath     string `json:"local_path,omitempty"`
}

// Kind derives the document kind from the filename.
func (d RemoteDocument) Kind() Kind {
	return KindFromFilename(d.Filename)
}

// KindFromFilename maps FR*/NC* audit files and opengcs-* snapshots to their kind.
func KindFromFilename(name string) Kind {
	base := path.Base(name)
	switch {
	case strings.HasPrefix(base, string(KindInvoice)):
		return KindInvoice
	case strings.HasPrefix(base, string(KindCreditNote)):
		return KindCreditNote
	case strings.HasPrefix(base, openGCsPrefix):
		return KindOpenGCs
	default:
		return KindUnknown
	}
}

var filialPattern = regexp.MustCompile(`(FR|NC)\d+Y\d+_\d+-(.+)`)

// FilialFromFilename extracts the branch name from names like FR202Y2025_7-Gramido.xml.
// The second result is false when the name does not follow the convention.
func FilialFromFilename(name string) (string, bool) {
	m := filialPattern.FindStringSubmatch(path.Base(name))
	if m == nil {
		return "", false
	}
	return strings.ReplaceAll(m[2], ".xml", ""), true
}

// OpenGCsName is the parsed form of opengcs-<nif>-<filial>[.xml].
type OpenGCsName struct {
	NIF    string
	Filial string
}

// LojaID is the store key used for snapshots: "<nif>_<filial>" or just the NIF.
func (n OpenGCsName) LojaID() string {
	if n.Filial == "" {
		return n.NIF
	}
	return n.NIF + "_" + n.Filial
}

// ParseOpenGCsFilename parses opengcs-<nif>-<filial>. A name without a second dash is rejected.
func ParseOpenGCsFilename(name string) (OpenGCsName, bool) {
	base := path.Base(name)
	if !strings.HasPrefix(base, openGCsPrefix) {
		return OpenGCsName{}, false
	}
	parts := strings.Split(strings.TrimPrefix(base, openGCsPrefix), "-")
	if len(parts) < 2 || parts[0] == "" {
		return OpenGCsName{}, false
	}
	return OpenGCsName{
		NIF:    parts[0],
		Filial: strings.ReplaceAll(parts[1], ".xml", ""),
	}, true
}
