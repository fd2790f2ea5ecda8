package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Exam authoring ────────────────────────────────────────────────
	ErrExamNotPublished ErrCode = "EXAM_NOT_PUBLISHED"
	ErrNotExamAuthor    ErrCode = "NOT_EXAM_AUTHOR"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrExamNotDraft     ErrCode = "EXAM_NOT_DRAFT"
	ErrInvalidQuestion  ErrCode = "INVALID_QUESTION"

	// ─── Submission ────────────────────────────────────────────────────
	ErrExamNotAvailable ErrCode = "EXAM_NOT_AVAILABLE"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrQuestionNotFound ErrCode = "QUESTION_NOT_FOUND"
	ErrDuplicateAnswer  ErrCode = "DUPLICATE_ANSWER"
	ErrDataIntegrity    ErrCode = "DATA_INTEGRITY"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrTeacherAccessOnly:
		return "Sumber daya ini terbatas untuk guru."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Exam authoring ────────────────────────────────────────────────
	case ErrExamNotPublished:
		return "Ujian ini belum dipublikasikan."
	case ErrNotExamAuthor:
		return "Anda bukan pembuat ujian ini."
	case ErrNoQuestions:
		return "Ujian ini tidak memiliki pertanyaan."
	case ErrExamNotDraft:
		return "Ujian ini tidak dalam status DRAFT."
	case ErrInvalidQuestion:
		return "Pertanyaan tidak valid untuk jenisnya."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "Ujian ini saat ini tidak tersedia."
	case ErrAlreadySubmitted:
		return "Anda sudah mengumpulkan ujian ini."
	case ErrQuestionNotFound:
		return "Pertanyaan tidak ditemukan dalam ujian ini."
	case ErrDuplicateAnswer:
		return "Setiap pertanyaan hanya boleh dijawab sekali."
	case ErrDataIntegrity:
		return "Data ujian tidak konsisten. Hubungi pengajar."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
