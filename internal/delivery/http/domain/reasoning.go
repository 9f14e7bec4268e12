package domain

var (
	REASONING_START_SUCCESS    = "Berhasil memulai analisis penalaran"
	REASONING_START_FAILED     = "Gagal memulai analisis penalaran"
	REASONING_ADVANCE_SUCCESS  = "Berhasil melanjutkan langkah"
	REASONING_ADVANCE_FAILED   = "Gagal melanjutkan langkah"
	REASONING_FEEDBACK_SUCCESS = "Berhasil mengirim feedback"
	REASONING_FEEDBACK_FAILED  = "Gagal mengirim feedback"
	REASONING_STATUS_SUCCESS   = "Berhasil mendapatkan status analisis"
	REASONING_STATUS_FAILED    = "Gagal mendapatkan status analisis"
)
