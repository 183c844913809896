package classify

// DefaultProtected is the built-in protected-name policy: recycle bins,
// volume metadata and boot/system files. Callers may extend or replace it
// through configuration.
func DefaultProtected() map[string]Category {
	return map[string]Category{
		// Recycle bins
		"$recycle.bin": MustKeep,
		"recycler":     MustKeep,
		".trash":       MustKeep,
		".trashes":     MustKeep,
		".trash-*":     MustKeep,

		// Volume metadata
		"system volume information": MustKeep,
		".spotlight-v100":           MustKeep,
		".fseventsd":                MustKeep,
		".documentrevisions-v100":   MustKeep,
		".temporaryitems":           MustKeep,
		".vol":                      MustKeep,
		"lost+found":                MustKeep,

		// Boot and system
		"boot":         MustKeep,
		"bootmgr":      MustKeep,
		"efi":          MustKeep,
		"pagefile.sys": MustKeep,
		"hiberfil.sys": MustKeep,
		"swapfile.sys": MustKeep,
		"system32":     MustKeep,
		"syswow64":     MustKeep,

		// Absolute paths
		"/proc":           MustKeep,
		"/sys":            MustKeep,
		"/dev":            MustKeep,
		"/system":         MustKeep,
		"/private/var/vm": MustKeep,
	}
}

var disposableExtensions = map[string]bool{
	".tmp":        true,
	".temp":       true,
	".log":        true,
	".old":        true,
	".bak":        true,
	".dmp":        true,
	".crdownload": true,
	".part":       true,
	".partial":    true,
	".cache":      true,
	".swp":        true,
	".msi":        true,
	".msp":        true,
	".etl":        true,
}

var disposableFiles = map[string]bool{
	"thumbs.db": true,
	".ds_store": true,
}

// Cache and scratch directories, from the analyzer's fold list.
var disposableDirs = map[string]bool{
	"temp":          true,
	"tmp":           true,
	".temp":         true,
	".tmp":          true,
	"_temp":         true,
	"_tmp":          true,
	"cache":         true,
	"caches":        true,
	".cache":        true,
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	".ruff_cache":   true,
	".parcel-cache": true,
	".next":         true,
	".nuxt":         true,
	".turbo":        true,
	"deriveddata":   true,
	"inetcache":     true,
	"crashdumps":    true,
	"__macosx":      true,
	"_cacache":      true,
	"_logs":         true,
	"logs":          true,
}

var systemExtensions = map[string]bool{
	".sys":   true,
	".dll":   true,
	".inf":   true,
	".cat":   true,
	".so":    true,
	".dylib": true,
	".kext":  true,
	".drv":   true,
	".efi":   true,
	".mui":   true,
}

// Slash-separated, lowercased install prefixes.
var systemPrefixes = []string{
	"/bin",
	"/sbin",
	"/lib",
	"/lib32",
	"/lib64",
	"/usr",
	"/etc",
	"/opt",
	"/var/lib",
	"/library",
	"/applications",
	"/nix/store",
	"c:/windows",
	"c:/program files",
	"c:/program files (x86)",
	"c:/programdata",
}

var systemFragments = []string{
	"/windows/system32",
	"/windows/syswow64",
	"/windows/winsxs",
}

var archiveExtensions = map[string]bool{
	".zip":  true,
	".rar":  true,
	".7z":   true,
	".iso":  true,
	".dmg":  true,
	".tar":  true,
	".gz":   true,
	".tgz":  true,
	".img":  true,
	".vhd":  true,
	".vhdx": true,
}

// Executables and documents are assumed to be worth keeping.
var valuableExtensions = map[string]bool{
	".exe":  true,
	".app":  true,
	".sh":   true,
	".bin":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".ppt":  true,
	".pptx": true,
	".odt":  true,
	".ods":  true,
	".txt":  true,
	".md":   true,
	".go":   true,
	".py":   true,
	".rs":   true,
	".js":   true,
	".ts":   true,
	".c":    true,
	".h":    true,
	".java": true,
	".jpg":  true,
	".png":  true,
	".heic": true,
}
