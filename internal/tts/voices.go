package tts

import "math/rand"

// Profile is the interviewer persona chosen for a session: a gender, a
// matching voice on each provider, and an avatar face.
type Profile struct {
	Gender       string
	PrimaryVoice string
	EdgeVoice    string
	FaceID       string
}

type voicePair struct {
	gender       string
	primaryVoice string
	edgeVoice    string
}

// Gender-matched voices per interview language. The primary voice is
// an OpenAI speech voice, the edge voice a Microsoft neural voice.
var voiceConfigs = map[string][]voicePair{
	"en-US": {
		{gender: "male", primaryVoice: "onyx", edgeVoice: "en-US-GuyNeural"},
		{gender: "male", primaryVoice: "echo", edgeVoice: "en-US-ChristopherNeural"},
		{gender: "female", primaryVoice: "nova", edgeVoice: "en-US-JennyNeural"},
		{gender: "female", primaryVoice: "shimmer", edgeVoice: "en-US-AriaNeural"},
	},
	"en-GB": {
		{gender: "male", primaryVoice: "onyx", edgeVoice: "en-GB-RyanNeural"},
		{gender: "female", primaryVoice: "nova", edgeVoice: "en-GB-SoniaNeural"},
	},
	"es-ES": {
		{gender: "male", primaryVoice: "onyx", edgeVoice: "es-ES-AlvaroNeural"},
		{gender: "female", primaryVoice: "nova", edgeVoice: "es-ES-ElviraNeural"},
	},
	"fr-FR": {
		{gender: "male", primaryVoice: "echo", edgeVoice: "fr-FR-HenriNeural"},
		{gender: "female", primaryVoice: "shimmer", edgeVoice: "fr-FR-DeniseNeural"},
	},
	"de-DE": {
		{gender: "male", primaryVoice: "onyx", edgeVoice: "de-DE-ConradNeural"},
		{gender: "female", primaryVoice: "nova", edgeVoice: "de-DE-KatjaNeural"},
	},
	"hi-IN": {
		{gender: "male", primaryVoice: "onyx", edgeVoice: "hi-IN-MadhurNeural"},
		{gender: "female", primaryVoice: "nova", edgeVoice: "hi-IN-SwaraNeural"},
	},
	"ja-JP": {
		{gender: "male", primaryVoice: "echo", edgeVoice: "ja-JP-KeitaNeural"},
		{gender: "female", primaryVoice: "shimmer", edgeVoice: "ja-JP-NanamiNeural"},
	},
	"pt-BR": {
		{gender: "male", primaryVoice: "onyx", edgeVoice: "pt-BR-AntonioNeural"},
		{gender: "female", primaryVoice: "nova", edgeVoice: "pt-BR-FranciscaNeural"},
	},
	"tr-TR": {
		{gender: "male", primaryVoice: "onyx", edgeVoice: "tr-TR-AhmetNeural"},
		{gender: "female", primaryVoice: "nova", edgeVoice: "tr-TR-EmelNeural"},
	},
}

var maleFaceIDs = []string{
	"3f8a1d62-57e4-4f9c-9a8b-2d6c1e0f4b7a",
	"9c2e5b18-4a6d-4c3f-8e7b-1f0a9d8c6b5e",
	"6d4b7f29-8c1a-4e5d-b3f6-0a2c8e9d7b41",
}

var femaleFaceIDs = []string{
	"a1b2c3d4-5e6f-4a7b-8c9d-0e1f2a3b4c5d",
	"e7f8a9b0-1c2d-4e3f-a5b6-7c8d9e0f1a2b",
	"4c5d6e7f-8a9b-4c1d-9e2f-3a4b5c6d7e8f",
}

// SelectProfile picks the interviewer persona for a session: gender
// uniformly at random, then a gender-matched voice pair for the
// language, then an avatar face from the matching pool. Unknown
// languages fall back to the en-US voices.
func SelectProfile(rng *rand.Rand, language string) Profile {
	configs, ok := voiceConfigs[language]
	if !ok || len(configs) == 0 {
		configs = voiceConfigs["en-US"]
	}

	gender := "female"
	if rng.Intn(2) == 0 {
		gender = "male"
	}

	matched := make([]voicePair, 0, len(configs))
	for _, vc := range configs {
		if vc.gender == gender {
			matched = append(matched, vc)
		}
	}
	if len(matched) == 0 {
		// No voice of the drawn gender for this language; take what exists.
		matched = configs
		gender = configs[0].gender
	}
	pair := matched[rng.Intn(len(matched))]

	faces := femaleFaceIDs
	if gender == "male" {
		faces = maleFaceIDs
	}

	return Profile{
		Gender:       gender,
		PrimaryVoice: pair.primaryVoice,
		EdgeVoice:    pair.edgeVoice,
		FaceID:       faces[rng.Intn(len(faces))],
	}
}
