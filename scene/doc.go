// Package scene is the animation scene collaborator of the keyframe stream.
//
// A Scene is an arena of nodes (skeleton joints, marker sets and markers) where every
// node owns up to six curves: rotation and translation on X, Y and Z. Scenes are
// stored as YAML documents:
//
//	name: walk
//	nodes:
//	  - {name: RootNode, kind: "null", parent: -1}
//	  - name: Hips
//	    kind: skeleton
//	    parent: 0
//	    curves:
//	      rx: [{t: 0, v: 0, i: cubic}, {t: 33, v: 4.5, i: cubic}]
//	      tx: [{t: 0, v: 0, i: linear}]
//
// Streaming works on markers rather than joints: ToAbsoluteMarkers flattens a
// skeleton into a marker set carrying absolute transforms, and FromAbsoluteMarkers
// turns received marker data back into local joint transforms.
package scene
