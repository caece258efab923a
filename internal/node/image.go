package node

import "strings"

// DefaultTag is used for image references without a tag.
const DefaultTag = "latest"

// splitTag returns the index of the tag separator in image, or -1. Only a
// colon in the last path element separates a tag; a colon before it
// belongs to a registry port.
func splitTag(image string) int {
	name := image[strings.LastIndex(image, "/")+1:]
	if !strings.Contains(name, ":") {
		return -1
	}
	return strings.LastIndex(image, ":")
}

// RepoFromImage strips the tag from an image reference.
//
//	RepoFromImage("registry:5000/team/node:v2") == "registry:5000/team/node"
func RepoFromImage(image string) string {
	if i := splitTag(image); i != -1 {
		return image[:i]
	}
	return image
}

// TagFromImage returns the tag of an image reference, DefaultTag when it
// has none.
func TagFromImage(image string) string {
	if i := splitTag(image); i != -1 {
		return image[i+1:]
	}
	return DefaultTag
}

// OfficialImage returns the official node image with the tag matching
// the hardware: latest-gpu or latest-cpu.
func OfficialImage(repo string, gpu bool) string {
	if gpu {
		return repo + ":" + DefaultTag + "-gpu"
	}
	return repo + ":" + DefaultTag + "-cpu"
}
