package hotkeys

// Function keys referenced by the tests but not needed by production code.
// Values follow the contiguous VK_F1..VK_F24 range.
const (
	VKF5 VKey = VKF1 + 4
	VKF6 VKey = VKF1 + 5
	VKF8 VKey = VKF1 + 7
	VKF9 VKey = VKF1 + 8
)
