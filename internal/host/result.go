package host

// OutputKind distinguishes code chunks from raw assets.
type OutputKind string

const (
	KindChunk OutputKind = "chunk"
	KindAsset OutputKind = "asset"
)

// OutputFile is one emitted file. Chunks carry Code, assets carry Source.
type OutputFile struct {
	FileName string
	Kind     OutputKind
	Code     string
	Source   []byte
}

// Result is what a build returns. A multi-target build fills Outputs with
// one nested Result per target; a watch-mode build sets Watching and has
// no files.
type Result struct {
	Output   []OutputFile
	Outputs  []*Result
	Watching bool
}
