package domain

var (
	CASE_START_SUCCESS  = "Berhasil memulai kasus"
	CASE_START_FAILED   = "Gagal memulai kasus"
	CASE_TURN_SUCCESS   = "Berhasil mengirim pesan"
	CASE_TURN_FAILED    = "Gagal mengirim pesan"
	CASE_SKIP_SUCCESS   = "Berhasil melewati kasus"
	CASE_SKIP_FAILED    = "Gagal melewati kasus"
	CASE_RESUME_SUCCESS = "Berhasil melanjutkan kasus"
	CASE_RESUME_FAILED  = "Gagal melanjutkan kasus"
)
