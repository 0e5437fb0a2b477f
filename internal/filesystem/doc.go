// Package filesystem walks template trees with ignore rules.
//
// Template directories are copied into freshly generated projects, so the
// defaults differ from a source-tree walk: hidden files such as .rubocop.yml
// are included and only version-control metadata is skipped.
//
//	err := filesystem.Walk(src, filesystem.WalkOptions{IncludeHidden: true},
//	    func(rel string, d fs.DirEntry) error {
//	        fmt.Println(rel)
//	        return nil
//	    })
package filesystem
