package exclude

// vcsExcludeGlobs lists the metadata files and directories that common
// version-control systems keep inside a working tree. The set is fixed for
// the process lifetime and is appended to the pattern list when VCS exclusion
// is requested.
var vcsExcludeGlobs = []string{
	// Git
	".git/**",
	".gitignore",
	".gitmodules",
	".gitattributes",
	// Subversion
	".svn/**",
	// Mercurial
	".hg/**",
	".hgignore",
	".hgtags",
	// Bazaar
	".bzr/**",
	".bzrignore",
	".bzrtags",
	// CVS
	"CVS/**",
	".cvsignore",
	// RCS and SCCS
	"RCS/**",
	"SCCS/**",
	// GNU Arch. The braces are escaped so the glob engine treats them as
	// literal characters rather than an alternation group.
	".arch-ids/**",
	"\\{arch\\}/**",
	"=RELEASE-ID",
	"=meta-update",
	"=update",
	// Darcs
	"_darcs/**",
}

// VCSExcludeGlobs returns a copy of the built-in VCS metadata glob set.
func VCSExcludeGlobs() []string {
	patternCopies := make([]string, len(vcsExcludeGlobs))
	copy(patternCopies, vcsExcludeGlobs)
	return patternCopies
}
