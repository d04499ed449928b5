package config

type WorkerKeyStruct struct {
	PersistViolationsQueue string
	PersistAnswersQueue    string
	PersistBeaconsQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue: "persist_violations_queue",
	PersistAnswersQueue:    "persist_answers_queue",
	PersistBeaconsQueue:    "persist_beacons_queue",
}
