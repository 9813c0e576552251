package reprocess

// errorMessages maps processing error codes to the Persian user-facing text
// shown by the admin console. The machine code always travels alongside, so
// presentation stays localizable without touching stored jobs.
var errorMessages = map[string]string{
	"missing_media": "هیچ رسانه‌ای برای پردازش وظیفه یافت نشد.",
	"missing_url":   "آدرس فایل رسانه در دسترس نیست.",
	"missing_file":  "فایل رسانه‌ای که برای پردازش نیاز است یافت نشد.",
	"network_error": "دسترسی به آدرس فایل رسانه امکان‌پذیر نبود.",
	"bad_status":    "آدرس فایل رسانه با وضعیت ناموفق پاسخ داد.",
	"unexpected":    "خطای غیرمنتظره‌ای هنگام پردازش ویدیو رخ داد.",
}

// messageFor returns the localized message for a code, or the fallback when
// the code has no translation.
func messageFor(code, fallback string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return fallback
}
