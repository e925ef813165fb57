package sharepoint

// DriveItem represents a SharePoint drive file or folder from the Graph API.
type DriveItem struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Size             int64            `json:"size"`
	WebURL           string           `json:"webUrl"`
	CreatedDateTime  string           `json:"createdDateTime"`
	ModifiedDateTime string           `json:"lastModifiedDateTime"`
	File             *FileInfo        `json:"file,omitempty"`
	Folder           *FolderInfo      `json:"folder,omitempty"`
	ParentReference  *ParentReference `json:"parentReference,omitempty"`
	Deleted          *DeletedInfo     `json:"deleted,omitempty"`
	DownloadURL      string           `json:"@microsoft.graph.downloadUrl,omitempty"`
}

// FileInfo contains file-specific metadata.
type FileInfo struct {
	MIMEType string `json:"mimeType"`
	Hashes   *struct {
		QuickXorHash string `json:"quickXorHash"`
		SHA1Hash     string `json:"sha1Hash"`
	} `json:"hashes,omitempty"`
}

// FolderInfo contains folder-specific metadata.
type FolderInfo struct {
	ChildCount int `json:"childCount"`
}

// ParentReference contains parent folder information.
type ParentReference struct {
	DriveID   string `json:"driveId"`
	DriveType string `json:"driveType"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
}

// DeletedInfo indicates the item was deleted.
type DeletedInfo struct {
	State string `json:"state"`
}

// IsFolder returns true if the item is a folder.
func (d *DriveItem) IsFolder() bool {
	return d.Folder != nil
}

// IsDeleted returns true if the item was deleted.
func (d *DriveItem) IsDeleted() bool {
	return d.Deleted != nil
}

// GetMIMEType returns the item's MIME type.
func (d *DriveItem) GetMIMEType() string {
	if d.File != nil && d.File.MIMEType != "" {
		return d.File.MIMEType
	}
	if d.IsFolder() {
		return "application/vnd.ms-folder"
	}
	return "application/octet-stream"
}
