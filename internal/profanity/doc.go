// Package profanity defines filter levels and the Filter capability, and
// annotates dialogue with sentinel-marked filtered spans.
package profanity
