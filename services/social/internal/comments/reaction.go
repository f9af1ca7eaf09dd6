package comments

// Reaction is a viewer's vote on a comment.
type Reaction int

const (
	Like Reaction = iota + 1
	Dislike
)

func (r Reaction) String() string {
	switch r {
	case 0:
		return "none"
	case Like:
		return "like"
	case Dislike:
		return "dislike"
	}
	return "unknown"
}

// React applies one toggle by user to the like and dislike sets and returns
// the new sets. Toggling the reaction the user already has removes it;
// toggling the other one moves the user across. A user is never left in
// both sets.
func React(likedBy, dislikedBy []string, user string, r Reaction) (liked, disliked []string) {
	liked = without(likedBy, user)
	disliked = without(dislikedBy, user)
	hadLike := len(liked) != len(likedBy)
	hadDislike := len(disliked) != len(dislikedBy)

	switch r {
	case Like:
		if !hadLike {
			liked = append(liked, user)
		}
	case Dislike:
		if !hadDislike {
			disliked = append(disliked, user)
		}
	}
	return liked, disliked
}

// without copies set minus every occurrence of user.
func without(set []string, user string) []string {
	out := make([]string, 0, len(set))
	for _, u := range set {
		if u != user {
			out = append(out, u)
		}
	}
	return out
}

func contains(set []string, user string) bool {
	for _, u := range set {
		if u == user {
			return true
		}
	}
	return false
}
