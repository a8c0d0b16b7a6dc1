package scanengine

import (
	"path/filepath"
	"strings"

	"github.com/xanadossd/avscan-core/internal/types"
)

var executableExtensions = map[string]bool{
	".exe": true, ".dll": true, ".sys": true, ".bat": true, ".cmd": true,
	".com": true, ".scr": true, ".msi": true, ".ps1": true, ".vbs": true,
	".js": true, ".jar": true, ".elf": true, ".so": true, ".bin": true,
	".sh": true,
}

var documentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".txt": true, ".rtf": true, ".odt": true,
}

var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mkv": true, ".mov": true,
	".wav": true, ".flac": true,
}

var archiveExtensions = map[string]bool{
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true,
	".bz2": true, ".xz": true, ".iso": true,
}

var systemDirSubstrings = []string{
	"/system32", "/windows/system", "/etc/", "/bin/", "/sbin/", "/usr/bin",
	"/usr/sbin", "/library/startupitems", "program files",
}

var downloadDirSubstrings = []string{
	"/downloads", "/desktop", "/documents",
}

var tempDirSubstrings = []string{
	"/tmp/", "/temp/", "/cache/", "/var/tmp", "appdata/local/temp",
}

// classifyFileKind maps a path's extension to the coarse kind used both
// for scan.filter and default priority assignment (spec §4.6).
func classifyFileKind(path string) types.FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case executableExtensions[ext]:
		return types.KindExecutable
	case documentExtensions[ext]:
		return types.KindDocument
	case mediaExtensions[ext]:
		return types.KindMedia
	case archiveExtensions[ext]:
		return types.KindArchive
	default:
		return types.KindOther
	}
}

// defaultPriority assigns a File Task's priority from its path and kind,
// per spec §4.6's default-priority table.
func defaultPriority(path string, kind types.FileKind) types.Priority {
	lower := strings.ToLower(path)

	if kind == types.KindExecutable || containsAny(lower, systemDirSubstrings) {
		return types.PriorityCritical
	}
	if containsAny(lower, tempDirSubstrings) {
		return types.PriorityLow
	}
	if containsAny(lower, downloadDirSubstrings) || kind == types.KindDocument {
		return types.PriorityHigh
	}
	if kind == types.KindMedia {
		return types.PriorityMedium
	}
	return types.PriorityMedium
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
