package artifactkey

// File naming for per-key artifacts. Both the download and merge stages
// address files through these helpers so the existence checks that drive
// idempotence can never drift apart.

// ComponentFile names one downloaded media component of a recording.
func ComponentFile(key, kind string) string {
	return key + "_" + kind + ".webm"
}

// MergedFile names the final merged output of a recording. Its existence is
// the terminal idempotence gate: it short-circuits the merge and every
// component download for the key.
func MergedFile(key string) string {
	return key + "_merged.mp4"
}
