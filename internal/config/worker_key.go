package config

type WorkerKeyStruct struct {
	ActivityQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ActivityQueue: "attempt_activity_queue",
}
