package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/goerz/zip-files/internal/exclude"
)

// writeTreeFile creates a file (and its parent directories) with the given
// content, failing the test on error.
func writeTreeFile(testingHandle *testing.T, filePath string, content string) {
	testingHandle.Helper()
	if makeDirError := os.MkdirAll(filepath.Dir(filePath), 0o755); makeDirError != nil {
		testingHandle.Fatalf("failed to create parent of %s: %v", filePath, makeDirError)
	}
	if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

// buildArchive runs one build into memory and returns an opened reader over
// the result with all decompressors registered.
func buildArchive(testingHandle *testing.T, options BuildOptions, inputPaths []string) *zip.Reader {
	testingHandle.Helper()
	var archiveBuffer bytes.Buffer
	if buildError := NewBuilder(nil, options).Build(&archiveBuffer, inputPaths); buildError != nil {
		testingHandle.Fatalf("Build failed: %v", buildError)
	}
	zipReader, openError := zip.NewReader(bytes.NewReader(archiveBuffer.Bytes()), int64(archiveBuffer.Len()))
	if openError != nil {
		testingHandle.Fatalf("failed to open built archive: %v", openError)
	}
	RegisterDecompressors(zipReader)
	return zipReader
}

// memberNames returns the sorted entry names of an archive.
func memberNames(zipReader *zip.Reader) []string {
	var nameList []string
	for _, archiveFile := range zipReader.File {
		nameList = append(nameList, archiveFile.Name)
	}
	sort.Strings(nameList)
	return nameList
}

// readMember decompresses one named entry, failing the test when it is
// missing or unreadable.
func readMember(testingHandle *testing.T, zipReader *zip.Reader, memberName string) string {
	testingHandle.Helper()
	for _, archiveFile := range zipReader.File {
		if archiveFile.Name != memberName {
			continue
		}
		memberReader, openError := archiveFile.Open()
		if openError != nil {
			testingHandle.Fatalf("failed to open member %s: %v", memberName, openError)
		}
		defer memberReader.Close()
		memberContent, readError := io.ReadAll(memberReader)
		if readError != nil {
			testingHandle.Fatalf("failed to read member %s: %v", memberName, readError)
		}
		return string(memberContent)
	}
	testingHandle.Fatalf("member %s not found in archive", memberName)
	return ""
}

// assertMemberNames compares the archive's entry set against the expectation.
func assertMemberNames(testingHandle *testing.T, zipReader *zip.Reader, expectedNames []string) {
	testingHandle.Helper()
	sort.Strings(expectedNames)
	actualNames := memberNames(zipReader)
	if len(actualNames) != len(expectedNames) {
		testingHandle.Fatalf("expected members %v, got %v", expectedNames, actualNames)
	}
	for nameIndex := range expectedNames {
		if actualNames[nameIndex] != expectedNames[nameIndex] {
			testingHandle.Fatalf("expected members %v, got %v", expectedNames, actualNames)
		}
	}
}

// TestBuildMixedInputsWithRootFolder verifies the renaming of mixed directory
// and file inputs beneath a root folder.
func TestBuildMixedInputsWithRootFolder(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "A", "X"), "content of X\n")
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "B.txt"), "content of B\n")

	zipReader := buildArchive(testingHandle,
		BuildOptions{RootFolder: "R", Method: MethodDeflated},
		[]string{filepath.Join(workDirectory, "A"), filepath.Join(workDirectory, "B.txt")})

	assertMemberNames(testingHandle, zipReader, []string{"R/A/X", "R/B.txt"})
	if memberContent := readMember(testingHandle, zipReader, "R/A/X"); memberContent != "content of X\n" {
		testingHandle.Fatalf("unexpected content for R/A/X: %q", memberContent)
	}
}

// TestBuildWithoutRootFolder verifies that entry names start at each input's
// own base name when no root folder is configured.
func TestBuildWithoutRootFolder(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "project", "src", "main.go"), "package main\n")
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "project", "README.md"), "readme\n")

	zipReader := buildArchive(testingHandle,
		BuildOptions{Method: MethodDeflated},
		[]string{filepath.Join(workDirectory, "project")})

	assertMemberNames(testingHandle, zipReader, []string{"project/README.md", "project/src/main.go"})
}

// TestBuildDirectoriesAreNotMembers verifies that directories contribute no
// archive entries of their own, including empty ones.
func TestBuildDirectoriesAreNotMembers(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "file.txt"), "data\n")
	if makeDirError := os.MkdirAll(filepath.Join(workDirectory, "tree", "empty"), 0o755); makeDirError != nil {
		testingHandle.Fatalf("failed to create empty directory: %v", makeDirError)
	}

	zipReader := buildArchive(testingHandle,
		BuildOptions{Method: MethodStored},
		[]string{filepath.Join(workDirectory, "tree")})

	assertMemberNames(testingHandle, zipReader, []string{"tree/file.txt"})
}

// TestBuildDotfilePolicy verifies that dotfiles are archived by default and
// skipped only when exclusion is enabled. The check applies to a file's own
// name, so files with dot-free names inside a dotfolder are still archived.
func TestBuildDotfilePolicy(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", ".hidden"), "hidden\n")
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "visible.txt"), "visible\n")
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", ".config", "settings"), "settings\n")
	inputPaths := []string{filepath.Join(workDirectory, "tree")}

	defaultReader := buildArchive(testingHandle, BuildOptions{Method: MethodDeflated}, inputPaths)
	assertMemberNames(testingHandle, defaultReader,
		[]string{"tree/.config/settings", "tree/.hidden", "tree/visible.txt"})

	filteredReader := buildArchive(testingHandle,
		BuildOptions{Method: MethodDeflated, ExcludeDotfiles: true}, inputPaths)
	assertMemberNames(testingHandle, filteredReader,
		[]string{"tree/.config/settings", "tree/visible.txt"})
}

// TestBuildAppliesExclusionPatterns verifies filtering against the final
// in-archive name, including the root folder prefix.
func TestBuildAppliesExclusionPatterns(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "keep.py"), "keep\n")
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "drop.pyc"), "drop\n")
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "build", "out.bin"), "out\n")

	pycPattern, patternError := exclude.NewGlobPattern("*.pyc")
	if patternError != nil {
		testingHandle.Fatalf("failed to build pattern: %v", patternError)
	}
	buildPattern, patternError := exclude.NewGlobPattern("release/tree/build/*")
	if patternError != nil {
		testingHandle.Fatalf("failed to build pattern: %v", patternError)
	}

	zipReader := buildArchive(testingHandle,
		BuildOptions{
			RootFolder: "release",
			Method:     MethodDeflated,
			Patterns:   []exclude.Pattern{pycPattern, buildPattern},
		},
		[]string{filepath.Join(workDirectory, "tree")})

	assertMemberNames(testingHandle, zipReader, []string{"release/tree/keep.py"})
}

// TestBuildPreservesPermissions verifies that entry modes carry the source
// file's permission bits.
func TestBuildPreservesPermissions(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	scriptPath := filepath.Join(workDirectory, "tree", "run.sh")
	writeTreeFile(testingHandle, scriptPath, "#!/bin/sh\n")
	if chmodError := os.Chmod(scriptPath, 0o500); chmodError != nil {
		testingHandle.Fatalf("failed to chmod %s: %v", scriptPath, chmodError)
	}

	zipReader := buildArchive(testingHandle,
		BuildOptions{Method: MethodDeflated},
		[]string{filepath.Join(workDirectory, "tree")})

	for _, archiveFile := range zipReader.File {
		if archiveFile.Name != "tree/run.sh" {
			continue
		}
		if entryMode := archiveFile.Mode().Perm(); entryMode != 0o500 {
			testingHandle.Fatalf("expected mode 0500 for tree/run.sh, got %04o", entryMode)
		}
		return
	}
	testingHandle.Fatal("member tree/run.sh not found in archive")
}

// TestBuildRoundTripAllMethods verifies that every selectable method stores
// the configured method identifier and decompresses back to the original
// content.
func TestBuildRoundTripAllMethods(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	fileContent := "the quick brown fox jumps over the lazy dog\n"
	for repeatIndex := 0; repeatIndex < 6; repeatIndex++ {
		fileContent += fileContent
	}
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "payload.txt"), fileContent)
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "empty.txt"), "")
	inputPaths := []string{filepath.Join(workDirectory, "tree")}

	for _, compressionMethod := range []Method{MethodStored, MethodDeflated, MethodBZip2, MethodLZMA} {
		testingHandle.Run(compressionMethod.String(), func(subtestHandle *testing.T) {
			zipReader := buildArchive(subtestHandle,
				BuildOptions{Method: compressionMethod}, inputPaths)

			for _, archiveFile := range zipReader.File {
				if archiveFile.Method != uint16(compressionMethod) {
					subtestHandle.Fatalf("expected method %d on %s, got %d",
						uint16(compressionMethod), archiveFile.Name, archiveFile.Method)
				}
			}
			if memberContent := readMember(subtestHandle, zipReader, "tree/payload.txt"); memberContent != fileContent {
				subtestHandle.Fatal("payload content changed across the round trip")
			}
			if memberContent := readMember(subtestHandle, zipReader, "tree/empty.txt"); memberContent != "" {
				subtestHandle.Fatalf("expected empty member, got %d bytes", len(memberContent))
			}
		})
	}
}

// TestBuildCompressionReducesSize verifies that repetitive content ends up
// smaller than its stored form under every real compression method.
func TestBuildCompressionReducesSize(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	repetitiveContent := bytes.Repeat([]byte("zip-files compresses repetitive data well. "), 512)
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "payload.txt"), string(repetitiveContent))
	inputPaths := []string{filepath.Join(workDirectory, "tree")}

	storedReader := buildArchive(testingHandle, BuildOptions{Method: MethodStored}, inputPaths)
	storedSize := storedReader.File[0].CompressedSize64

	for _, compressionMethod := range []Method{MethodDeflated, MethodBZip2, MethodLZMA} {
		compressedReader := buildArchive(testingHandle, BuildOptions{Method: compressionMethod}, inputPaths)
		compressedSize := compressedReader.File[0].CompressedSize64
		if compressedSize >= storedSize {
			testingHandle.Fatalf("expected %s (%d bytes) to be smaller than stored (%d bytes)",
				compressionMethod, compressedSize, storedSize)
		}
	}
}

// TestBuildIsIdempotent verifies that building the same inputs twice yields
// the same member names and decompressed contents.
func TestBuildIsIdempotent(testingHandle *testing.T) {
	workDirectory := testingHandle.TempDir()
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "src", "main.go"), "package main\n")
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", "README.md"), "readme\n")
	writeTreeFile(testingHandle, filepath.Join(workDirectory, "tree", ".hidden"), "hidden\n")
	inputPaths := []string{filepath.Join(workDirectory, "tree")}
	buildOptions := BuildOptions{RootFolder: "R", Method: MethodDeflated}

	firstReader := buildArchive(testingHandle, buildOptions, inputPaths)
	secondReader := buildArchive(testingHandle, buildOptions, inputPaths)

	firstNames := memberNames(firstReader)
	secondNames := memberNames(secondReader)
	if len(firstNames) != len(secondNames) {
		testingHandle.Fatalf("member sets differ between builds: %v vs %v", firstNames, secondNames)
	}
	for nameIndex := range firstNames {
		if firstNames[nameIndex] != secondNames[nameIndex] {
			testingHandle.Fatalf("member sets differ between builds: %v vs %v", firstNames, secondNames)
		}
	}
	for _, memberName := range firstNames {
		firstContent := readMember(testingHandle, firstReader, memberName)
		secondContent := readMember(testingHandle, secondReader, memberName)
		if firstContent != secondContent {
			testingHandle.Fatalf("content of %s differs between builds", memberName)
		}
	}
}

// TestBuildMissingInput verifies that a vanished input path fails the build.
func TestBuildMissingInput(testingHandle *testing.T) {
	missingPath := filepath.Join(testingHandle.TempDir(), "absent")
	var archiveBuffer bytes.Buffer
	buildError := NewBuilder(nil, BuildOptions{Method: MethodDeflated}).Build(&archiveBuffer, []string{missingPath})
	if buildError == nil {
		testingHandle.Fatal("expected an error for a missing input path")
	}
}
