package pipeline

import "fmt"

// Stage numbers the pipeline steps for --min-stage and --max-stage
type Stage int

const (
	StageSource Stage = iota + 1
	StageRevision
	StageBuildLog
	StageCompile
	StagePackage
	StageChecksum
	StagePublish
)

// NumStages is the highest stage number
const NumStages = int(StagePublish)

var stageNames = map[Stage]string{
	StageSource:   "source",
	StageRevision: "revision",
	StageBuildLog: "build-log",
	StageCompile:  "compile",
	StagePackage:  "package",
	StageChecksum: "checksum",
	StagePublish:  "publish",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}

	return fmt.Sprintf("stage-%d", int(s))
}

// Stages returns every stage in execution order
func Stages() []Stage {
	stages := make([]Stage, 0, NumStages)
	for s := StageSource; s <= StagePublish; s++ {
		stages = append(stages, s)
	}

	return stages
}
