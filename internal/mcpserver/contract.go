package mcpserver

// LayoutContract describes the on-disk layout of an imgnote store so LLM
// consumers can reason about ids, categories and archives.
const LayoutContract = `# imgnote Store Layout

An imgnote store is a plain directory tree. There is no database file: the
tree is the source of truth and every listing re-reads it.

## Structure

` + "```" + `
dataBase/
  _default/                 # default category, always present
    category.json           # {"name": "Default", "color": "#6b7fd7"}
    n_<id>/
      meta.json             # {"name": "...", "imageFile": "image.png", "encrypted": false}
      image.png
  cat_<id>/
    category.json
    n_<id>/
      meta.json
      image.jpg
` + "```" + `

## Rules

1. **Categories** are the top-level directories. Ids look like ` + "`" + `cat_<id>` + "`" + `,
   except the default category ` + "`" + `_default` + "`" + ` which cannot be deleted.
2. **Deleting a category** moves its notes into ` + "`" + `_default` + "`" + `.
3. **Notes** are directories inside a category holding ` + "`" + `meta.json` + "`" + ` and one image.
   A directory without ` + "`" + `meta.json` + "`" + ` or without an image is not a note.
4. **Images** have one of the extensions png, jpg, jpeg, gif, bmp, webp. Imported
   images are stored as ` + "`" + `image.<ext>` + "`" + `.
5. **Note ids** are stable across renames and category moves; import always
   allocates fresh ids.
6. **Metadata** files are JSON objects; unknown keys are preserved on update.

## Archives

- An archive is a zip file with the ` + "`" + `.IMGNote` + "`" + ` extension containing a single
  ` + "`" + `dataBase/` + "`" + ` directory laid out as above.
- ` + "`" + `export_store` + "`" + ` packs the whole store or the notes named in ` + "`" + `notes` + "`" + `.
- ` + "`" + `import_archive` + "`" + ` merges an archive into the store. With skip_duplicates
  (the default), notes whose content fingerprint already exists are skipped.
- Local category names and colors always win over imported ones.

## Example

` + "```" + `
import_image   {"category_id": "_default", "source_path": "/tmp/sunset.png"}
create_category {"name": "Travel", "color": "#ff8800"}
move_note      {"note_id": "n_...", "from": "_default", "to": "cat_..."}
` + "```" + `
`
