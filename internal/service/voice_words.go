package service

// voiceWords is the fixed vocabulary voice tokens are drawn from: short,
// lowercase, easy to say and hard to mishear.
var voiceWords = [...]string{
	"apple", "anchor", "bamboo", "beacon", "breeze",
	"cactus", "canyon", "cedar", "cobalt", "comet",
	"coral", "dolphin", "ember", "falcon", "forest",
	"galaxy", "garden", "glacier", "harbor", "honey",
	"island", "jasmine", "jungle", "lantern", "lemon",
	"maple", "meadow", "mango", "marble", "nectar",
	"ocean", "orbit", "orchid", "panda", "pepper",
	"pillow", "planet", "prairie", "quartz", "rabbit",
	"river", "rocket", "saddle", "salmon", "silver",
	"sunset", "tiger", "tulip", "violet", "walnut",
}

var voiceWordSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(voiceWords))
	for _, w := range voiceWords {
		set[w] = struct{}{}
	}
	return set
}()

func isVoiceWord(s string) bool {
	_, ok := voiceWordSet[s]
	return ok
}
