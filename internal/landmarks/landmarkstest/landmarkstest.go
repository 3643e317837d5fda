// Package landmarkstest builds synthetic face meshes with a chosen eye aspect ratio and mouth width.
package landmarkstest

import "github.com/kozaktomas/attendance-kiosk/internal/landmarks"

// MeshSize matches the MediaPipe refined mesh.
const MeshSize = 478

const (
	eyeWidth  = 0.1
	faceLeft  = 0.2
	faceRight = 0.8
	lipTop    = 0.70
	lipBottom = 0.74
	mouthY    = 0.80 // corners well below the lip centre: no lift
)

// Face returns a mesh laid out per landmarks.DefaultLayout whose average EAR
// is ear and whose mouth-width ratio is mouthRatio. Mouth corners sit below
// the lip centre so only the width ratio can trigger the smile signal.
func Face(ear, mouthRatio float64) landmarks.Set {
	l := landmarks.DefaultLayout()
	s := make(landmarks.Set, MeshSize)
	for i := range s {
		s[i] = landmarks.Point{X: 0.5, Y: 0.5}
	}

	placeEye(s, l.LeftEye, 0.35, 0.4, ear)
	placeEye(s, l.RightEye, 0.65, 0.4, ear)

	s[l.FaceLeft] = landmarks.Point{X: faceLeft, Y: 0.5}
	s[l.FaceRight] = landmarks.Point{X: faceRight, Y: 0.5}

	half := mouthRatio * (faceRight - faceLeft) / 2
	s[l.MouthLeft] = landmarks.Point{X: 0.5 - half, Y: mouthY}
	s[l.MouthRight] = landmarks.Point{X: 0.5 + half, Y: mouthY}
	s[l.UpperLip] = landmarks.Point{X: 0.5, Y: lipTop}
	s[l.LowerLip] = landmarks.Point{X: 0.5, Y: lipBottom}
	return s
}

// LiftCorners moves both mouth corners level with the lip centre.
func LiftCorners(s landmarks.Set) landmarks.Set {
	l := landmarks.DefaultLayout()
	out := make(landmarks.Set, len(s))
	copy(out, s)
	centre := (lipTop + lipBottom) / 2
	out[l.MouthLeft].Y = centre
	out[l.MouthRight].Y = centre
	return out
}

// placeEye lays out p1..p6 so that EAR = height / width = ear.
func placeEye(s landmarks.Set, idx [6]int, cx, cy, ear float64) {
	h := ear * eyeWidth / 2
	w := eyeWidth / 2
	s[idx[0]] = landmarks.Point{X: cx - w, Y: cy}
	s[idx[1]] = landmarks.Point{X: cx - w/3, Y: cy - h}
	s[idx[2]] = landmarks.Point{X: cx + w/3, Y: cy - h}
	s[idx[3]] = landmarks.Point{X: cx + w, Y: cy}
	s[idx[4]] = landmarks.Point{X: cx + w/3, Y: cy + h}
	s[idx[5]] = landmarks.Point{X: cx - w/3, Y: cy + h}
}
