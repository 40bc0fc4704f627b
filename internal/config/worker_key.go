package config

type WorkerKeyStruct struct {
	PendingJobsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PendingJobsQueue: "pending_jobs_queue",
}
