package ffmpeg

import "strconv"

// Preset bundles combine common option combinations.

// PresetMP3 returns options for streaming MP3 at a constant bitrate.
// kbps <= 0 selects 128.
func PresetMP3(kbps int) []Option {
	if kbps <= 0 {
		kbps = 128
	}
	return []Option{
		NoVideo,
		AudioCodec("libmp3lame"),
		AudioBitrate(strconv.Itoa(kbps) + "k"),
		Format("mp3"),
	}
}

// Flatten merges multiple option slices into one.
func Flatten(groups ...[]Option) []Option {
	var all []Option
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}
