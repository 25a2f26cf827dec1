package dom

import "fmt"

// Data returns the character data of a text or comment node.
func (n *Node) Data() string { return n.data }

// Length returns the length of the character data in runes.
func (n *Node) Length() int { return len([]rune(n.data)) }

// SetData replaces the character data.
func (n *Node) SetData(data string) error {
	defer n.doc.trace(n, setter("data"), data)()
	if !n.isCharacterData() {
		return fmt.Errorf("dom: data on %s: %w", n.Category, ErrNotSupported)
	}
	n.data = data
	if n.parent != nil {
		n.parent.textChanged()
	}
	return nil
}

// SubstringData returns count runes starting at offset.
func (n *Node) SubstringData(offset, count int) (string, error) {
	r := []rune(n.data)
	if offset < 0 || offset > len(r) || count < 0 {
		return "", ErrIndexSize
	}
	end := min(offset+count, len(r))
	return string(r[offset:end]), nil
}

// AppendData appends to the character data.
func (n *Node) AppendData(data string) error {
	defer n.doc.trace(n, method("appendData"), data)()
	return n.replaceData("appendData", n.Length(), 0, data)
}

// InsertData inserts data at offset.
func (n *Node) InsertData(offset int, data string) error {
	defer n.doc.trace(n, method("insertData"), offset, data)()
	return n.replaceData("insertData", offset, 0, data)
}

// DeleteData removes count runes starting at offset.
func (n *Node) DeleteData(offset, count int) error {
	defer n.doc.trace(n, method("deleteData"), offset, count)()
	return n.replaceData("deleteData", offset, count, "")
}

// ReplaceData replaces count runes starting at offset with data.
func (n *Node) ReplaceData(offset, count int, data string) error {
	defer n.doc.trace(n, method("replaceData"), offset, count, data)()
	return n.replaceData("replaceData", offset, count, data)
}

func (n *Node) replaceData(op string, offset, count int, data string) error {
	if !n.isCharacterData() {
		return fmt.Errorf("dom: %s on %s: %w", op, n.Category, ErrNotSupported)
	}
	r := []rune(n.data)
	if offset < 0 || offset > len(r) || count < 0 {
		return fmt.Errorf("dom: %s at %d: %w", op, offset, ErrIndexSize)
	}
	end := min(offset+count, len(r))
	n.data = string(r[:offset]) + data + string(r[end:])
	if n.parent != nil {
		n.parent.textChanged()
	}
	return nil
}

// SplitText splits a text node at offset. The tail becomes a new text node
// inserted after n when n has a parent.
func (n *Node) SplitText(offset int) (*Node, error) {
	defer n.doc.trace(n, method("splitText"), offset)()
	if n.Category != CategoryText {
		return nil, fmt.Errorf("dom: splitText on %s: %w", n.Category, ErrNotSupported)
	}
	r := []rune(n.data)
	if offset < 0 || offset > len(r) {
		return nil, fmt.Errorf("dom: splitText at %d: %w", offset, ErrIndexSize)
	}
	tail := n.doc.CreateTextNode(string(r[offset:]))
	if n.parent != nil {
		if _, err := n.parent.InsertBefore(tail, n.NextSibling()); err != nil {
			return nil, err
		}
	}
	if err := n.DeleteData(offset, len(r)-offset); err != nil {
		return nil, err
	}
	return tail, nil
}

func (n *Node) isCharacterData() bool {
	return n.Category == CategoryText || n.Category == CategoryComment
}
