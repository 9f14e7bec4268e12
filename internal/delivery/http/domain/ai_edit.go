package domain

var (
	AI_EDIT_SUCCESS    = "Berhasil mengedit soal dengan AI"
	AI_EDIT_FAILED     = "Gagal mengedit soal dengan AI"
	JOB_STATUS_SUCCESS = "Berhasil mendapatkan status job"
	JOB_STATUS_FAILED  = "Gagal mendapatkan status job"
)
