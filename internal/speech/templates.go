package speech

import "strings"

// localeByLanguage maps session languages to BCP 47 speech locales for
// on-device synthesis.
var localeByLanguage = map[string]string{
	"en": "en-IN",
	"hi": "hi-IN",
	"mr": "mr-IN",
	"ta": "ta-IN",
	"te": "te-IN",
}

// Locale returns the speech locale for a session language.
func Locale(language string) string {
	if loc, ok := localeByLanguage[language]; ok {
		return loc
	}
	return "en-IN"
}

// fallbackTemplates holds the static instruction texts used when the
// speech service is unavailable. English covers every instruction id;
// the other languages cover the high-traffic ids and fall back to
// English for the rest.
var fallbackTemplates = map[string]map[string]string{
	"en": {
		"session_start":    "Welcome. I will guide you through taking photos of your farm. Follow my instructions for each step.",
		"session_complete": "All done. Thank you. Your photos are being analyzed and your report will be ready soon.",
		"capture_ack":      "Photo saved. You can retake it, or move to the next step when you are ready.",
		"step_soil_1":      "Step 1. Soil Sample 1. Dig a small hole and hold the camera close to the fresh soil.",
		"step_soil_2":      "Step 2. Soil Sample 2. Take a second soil photo from a different spot in your field.",
		"step_crop_1":      "Step 3. Crop Close-up. Hold the camera near the leaves of one healthy plant.",
		"step_crop_2":      "Step 4. Crop Row. Step back and capture a full row of your crop.",
		"step_water_1":     "Step 5. Water Source. Point the camera at your well, pump, or canal.",
		"step_field_1":     "Step 6. Field Overview. Stand at the edge of your field and capture the whole field.",
		"step_field_2":     "Step 7. Field Boundary. Capture the boundary line of your field.",
		"hold_steady":      "Hold the phone steady.",
		"move_closer":      "Move a little closer.",
		"move_back":        "Move back a little.",
		"more_light":       "Find better light, or move out of the shadow.",
		"too_blurry":       "The image is blurry. Hold still and try again.",
		"looks_good":       "Looks good. Tap the button to capture.",
	},
	"hi": {
		"session_start":    "नमस्ते। मैं आपके खेत की तस्वीरें लेने में आपकी मदद करूंगा। हर कदम पर मेरे निर्देश सुनें।",
		"session_complete": "सभी तस्वीरें पूरी हुईं। धन्यवाद। आपकी रिपोर्ट जल्द तैयार होगी।",
		"capture_ack":      "फोटो सहेज ली गई है। आप दोबारा ले सकते हैं, या अगले कदम पर जाएं।",
		"hold_steady":      "फोन को स्थिर रखें।",
		"looks_good":       "अच्छा है। फोटो लेने के लिए बटन दबाएं।",
	},
	"mr": {
		"session_start":    "नमस्कार। मी तुम्हाला शेताचे फोटो काढण्यात मदत करेन। प्रत्येक पायरीवर माझ्या सूचना ऐका।",
		"session_complete": "सर्व फोटो पूर्ण झाले। धन्यवाद।",
	},
	"ta": {
		"session_start":    "வணக்கம். உங்கள் வயலின் புகைப்படங்களை எடுக்க நான் வழிகாட்டுவேன்.",
		"session_complete": "அனைத்து புகைப்படங்களும் முடிந்தன. நன்றி.",
	},
	"te": {
		"session_start":    "నమస్కారం. మీ పొలం ఫోటోలు తీయడంలో నేను మీకు సహాయం చేస్తాను.",
		"session_complete": "అన్ని ఫోటోలు పూర్తయ్యాయి. ధన్యవాదాలు.",
	},
}

// templateText resolves the static text for an instruction id, trying
// the requested language first and falling back to English.
func templateText(instructionID, language string) (string, bool) {
	if byID, ok := fallbackTemplates[language]; ok {
		if text, ok := byID[instructionID]; ok {
			return text, true
		}
	}
	if text, ok := fallbackTemplates["en"][instructionID]; ok {
		return text, true
	}
	return "", false
}

// estimateDurationMs approximates spoken duration from word count.
func estimateDurationMs(text string) int {
	words := len(strings.Fields(text))
	ms := words * 400
	if ms < 1000 {
		ms = 1000
	}
	return ms
}
